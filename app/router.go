package app

import (
	"log"
	"time"

	"github.com/Skibfizz/studydrop-backend/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda
// execution. Webhook, anonymous checkout, health and metrics stay
// public; everything else requires a verified token.
func (a *API) NewRouter() (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(MetricsMiddleware())

	router.GET("/health", a.Health)
	router.GET("/metrics", MetricsHandler())
	router.POST("/api/stripe/webhook", a.StripeWebhook)
	router.POST("/api/billing/anonymous-checkout", a.CreateAnonymousCheckout)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: a.onAuthenticated,
	}))
	protected.GET("/me", a.Me)
	protected.GET("/api/usage", a.GetUsage)
	protected.POST("/api/flashcards", a.GenerateFlashcards)
	protected.POST("/api/summarize", a.SummarizeVideo)
	protected.POST("/api/humanize", a.HumanizeText)
	protected.POST("/api/billing/create-checkout-session", a.CreateCheckoutSession)
	protected.POST("/api/billing/portal-session", a.CreatePortalSession)
	protected.POST("/api/billing/update-plan", a.UpdateUserPlan)

	return router, nil
}

// onAuthenticated runs once per authenticated request: it keeps the
// identity mirror fresh and, when the request still carries an anonymous
// purchase cookie, claims that purchase for the user.
func (a *API) onAuthenticated(c *gin.Context, claims *auth.Claims) error {
	ctx := c.Request.Context()
	if err := a.store.UpsertUserFromClaims(ctx, claims); err != nil {
		return err
	}

	if anonID, err := c.Cookie(anonCookie); err == nil && anonID != "" {
		if err := a.store.ClaimAnonymousPurchase(ctx, anonID, claims.Subject); err != nil {
			// The claim retries on the next request; don't fail auth over it.
			log.Printf("anonymous claim failed anon=%s sub=%s err=%v", anonID, claims.Subject, err)
		} else {
			c.SetCookie(anonCookie, "", -1, "/", "", true, true)
		}
	}
	return nil
}
