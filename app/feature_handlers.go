package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/Skibfizz/studydrop-backend/app/models"
	"github.com/Skibfizz/studydrop-backend/auth"

	"github.com/gin-gonic/gin"
)

// Health reports liveness.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the authenticated identity with its subscription state.
func (a *API) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	sub, err := a.store.GetSubscription(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("me: subscription lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "failed to load subscription"})
		return
	}

	out := gin.H{
		"user_id":      claims.Subject,
		"subscription": sub,
	}
	if user, err := a.store.GetUser(c.Request.Context(), claims.Subject); err == nil {
		out["email"] = user.Email
		out["name"] = user.Name
	}
	c.JSON(http.StatusOK, out)
}

// GetUsage serves the usage/limits projection for the UI. Informational
// only, so storage trouble degrades to free-tier defaults instead of an
// error.
func (a *API) GetUsage(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	summary, err := a.store.GetUsage(c.Request.Context(), claims.Subject, a.limits)
	if err != nil {
		log.Printf("usage projection failed sub=%s err=%v", claims.Subject, err)
		summary = models.UsageSummary{
			Tier:   models.TierFree,
			Limits: a.limits.For(models.TierFree),
		}
	}
	c.JSON(http.StatusOK, summary)
}

type flashcardsRequest struct {
	Content string `json:"content" binding:"required"`
	Count   int    `json:"count"`
}

// GenerateFlashcards turns submitted study material into a flashcard set.
func (a *API) GenerateFlashcards(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	var req flashcardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "content is required"})
		return
	}
	count := req.Count
	if count <= 0 || count > 50 {
		count = 10
	}

	if !a.gateAllows(c, claims.Subject, models.FeatureFlashcardSets) {
		return
	}

	raw, err := a.gen.Complete(c.Request.Context(), flashcardPrompt(req.Content, count))
	if err != nil {
		log.Printf("flashcard generation failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": "failed to generate flashcards"})
		return
	}
	cards, err := parseFlashcards(raw)
	if err != nil {
		log.Printf("flashcard parse failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": "model returned unusable output"})
		return
	}

	a.chargeUsage(c.Request.Context(), claims.Subject, models.FeatureFlashcardSets)
	c.JSON(http.StatusOK, gin.H{"flashcards": cards})
}

type summarizeRequest struct {
	VideoURL   string `json:"video_url"`
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
}

// SummarizeVideo produces a study summary for a YouTube video, fetching
// the transcript when the client did not supply one.
func (a *API) SummarizeVideo(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid request body"})
		return
	}

	transcript := strings.TrimSpace(req.Transcript)
	videoID := ""
	if transcript == "" {
		input := req.VideoID
		if input == "" {
			input = req.VideoURL
		}
		id, err := extractVideoID(input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "video_url, video_id or transcript is required"})
			return
		}
		videoID = id
	}

	if !a.gateAllows(c, claims.Subject, models.FeatureVideoSummaries) {
		return
	}

	if transcript == "" {
		fetched, err := a.transcripts.Fetch(c.Request.Context(), videoID)
		if err != nil {
			log.Printf("transcript fetch failed video=%s err=%v", videoID, err)
			status := http.StatusBadGateway
			if errors.Is(err, errNoCaptions) || errors.Is(err, errVideoMissing) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": "transcript_unavailable", "message": "could not fetch a transcript for this video"})
			return
		}
		transcript = fetched
	}

	summary, err := a.gen.Complete(c.Request.Context(), summaryPrompt(transcript))
	if err != nil {
		log.Printf("summary generation failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": "failed to generate summary"})
		return
	}

	a.chargeUsage(c.Request.Context(), claims.Subject, models.FeatureVideoSummaries)
	out := gin.H{"summary": summary}
	if videoID != "" {
		out["video_id"] = videoID
	}
	c.JSON(http.StatusOK, out)
}

type humanizeRequest struct {
	Text string `json:"text" binding:"required"`
}

// HumanizeText rewrites machine-sounding text in a natural register.
func (a *API) HumanizeText(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing auth context"})
		return
	}

	var req humanizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "text is required"})
		return
	}

	if !a.gateAllows(c, claims.Subject, models.FeatureTextHumanizations) {
		return
	}

	rewritten, err := a.gen.Complete(c.Request.Context(), humanizePrompt(req.Text))
	if err != nil {
		log.Printf("humanize generation failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": "failed to humanize text"})
		return
	}

	a.chargeUsage(c.Request.Context(), claims.Subject, models.FeatureTextHumanizations)
	c.JSON(http.StatusOK, gin.H{"text": rewritten})
}

// gateAllows runs the pre-generation fit check. It writes the error
// response itself and returns false when the request must not proceed.
// Storage trouble denies: the cap cannot be enforced on a gate that
// fails open.
func (a *API) gateAllows(c *gin.Context, userID string, feature models.FeatureType) bool {
	allowed, err := a.store.PeekUsage(c.Request.Context(), userID, feature, 1, a.limits)
	if err != nil {
		log.Printf("usage gate failed sub=%s feature=%s err=%v", userID, feature, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_error", "message": "usage check unavailable"})
		return false
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "limit_exceeded", "message": "usage limit reached for this period, upgrade your plan"})
		return false
	}
	return true
}

// chargeUsage records one successful generation. Failed generations never
// reach this point, so users are not billed for upstream errors. Losing
// the increment race to a concurrent request leaves the counter saturated
// at the cap; the response already generated is still returned.
func (a *API) chargeUsage(ctx context.Context, userID string, feature models.FeatureType) {
	charged, err := a.store.CheckAndIncrement(ctx, userID, feature, 1, a.limits)
	if err != nil {
		log.Printf("usage charge failed sub=%s feature=%s err=%v", userID, feature, err)
		return
	}
	if !charged {
		log.Printf("usage charge lost cap race sub=%s feature=%s", userID, feature)
	}
}
