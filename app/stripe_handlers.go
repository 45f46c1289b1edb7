package app

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/Skibfizz/studydrop-backend/app/models"
	"github.com/Skibfizz/studydrop-backend/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// anonCookie carries the anonymous purchase correlation id across the
// signup boundary.
const anonCookie = "sd_anon_id"

type checkoutRequest struct {
	Plan models.Tier `json:"plan"`
}

// CreateCheckoutSession starts a subscription-mode Stripe Checkout
// Session for the authenticated user at the requested plan.
func (a *API) CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request body"})
		return
	}
	priceID := a.priceForPlan(req.Plan)
	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		log.Printf("missing Stripe config: plan=%s price_id=%t frontend_url=%t", req.Plan, priceID != "", frontendURL != "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "billing not configured"})
		return
	}

	stripeCustomerID, err := a.ensureStripeCustomer(c.Request.Context(), claims.Subject, claims.Email())
	if err != nil {
		log.Printf("ensureStripeCustomer failed for sub=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "failed to prepare billing"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(stripeCustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}

	sess, err := a.billing.NewCheckoutSession(c.Request.Context(), params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

type anonymousCheckoutRequest struct {
	Plan        models.Tier `json:"plan"`
	AnonymousID string      `json:"anonymous_id"`
}

// CreateAnonymousCheckout starts a payment-mode checkout for a visitor
// with no account yet. The session carries the anonymous correlation id
// and intended plan in metadata; the webhook turns the completed payment
// into a pending subscription which is claimed at first login.
func (a *API) CreateAnonymousCheckout(c *gin.Context) {
	var req anonymousCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request body"})
		return
	}
	priceID := a.priceForPlan(req.Plan)
	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		log.Printf("missing Stripe config: plan=%s price_id=%t frontend_url=%t", req.Plan, priceID != "", frontendURL != "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "billing not configured"})
		return
	}

	anonID := strings.TrimSpace(req.AnonymousID)
	if anonID == "" {
		anonID = uuid.NewString()
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/signup?purchase=complete"),
		CancelURL:  stripe.String(frontendURL + "/pricing"),
		Metadata: map[string]string{
			"anonymous_id":  anonID,
			"intended_plan": string(req.Plan),
		},
	}

	sess, err := a.billing.NewCheckoutSession(c.Request.Context(), params)
	if err != nil {
		log.Printf("stripe anonymous checkout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "failed to create checkout session"})
		return
	}

	// 30 days: long enough to survive the signup gap.
	c.SetCookie(anonCookie, anonID, 30*24*3600, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"url": sess.URL, "anonymous_id": anonID})
}

// CreatePortalSession creates a Stripe Customer Portal session for the
// authenticated user.
func (a *API) CreatePortalSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	sub, err := a.store.GetSubscription(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("portal lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "failed to load customer"})
		return
	}
	if sub.StripeCustomerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_customer", "message": "stripe customer missing for user"})
		return
	}

	frontendURL := strings.TrimRight(a.cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		log.Printf("missing Stripe config: frontend_url=false")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "billing not configured"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := a.billing.NewPortalSession(c.Request.Context(), params)
	if err != nil {
		log.Printf("stripe portal session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing_unavailable", "message": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// StripeWebhook verifies and applies billing lifecycle events. Signature
// or payload failures answer non-2xx so Stripe retries; events the
// reconciler deliberately drops are acknowledged.
func (a *API) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "invalid payload"})
		return
	}

	endpointSecret := a.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook_unconfigured", "message": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature", "message": "signature verification failed"})
		return
	}

	parsed, err := parseBillingEvent(event)
	if err != nil {
		log.Printf("stripe webhook parse failed type=%s err=%v", event.Type, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "invalid event payload"})
		return
	}

	if err := a.recon.Apply(c.Request.Context(), parsed); err != nil {
		log.Printf("stripe webhook apply failed type=%s err=%v", event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "apply_failed", "message": "failed to apply event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type updatePlanRequest struct {
	Plan models.Tier `json:"plan"`
}

// UpdateUserPlan sets the authenticated user's tier directly. Manual
// override path; billing metadata is left alone.
func (a *API) UpdateUserPlan(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}
	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request body"})
		return
	}
	if !models.ValidTier(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "invalid plan"})
		return
	}

	if err := a.store.SetTier(c.Request.Context(), claims.Subject, req.Plan); err != nil {
		log.Printf("update plan failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "failed to update plan"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) priceForPlan(plan models.Tier) string {
	switch plan {
	case models.TierBasic:
		return a.cfg.Stripe.PriceIDBasicMonthly
	case models.TierPro:
		return a.cfg.Stripe.PriceIDProMonthly
	}
	return ""
}
