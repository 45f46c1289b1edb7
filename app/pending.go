package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/Skibfizz/studydrop-backend/app/models"
)

// InsertPendingSubscription records a purchase made before signup. Called
// from the webhook when an anonymous checkout completes.
func (s *Store) InsertPendingSubscription(ctx context.Context, anonymousID, paymentIntentID string, plan models.Tier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_subscriptions (anonymous_id, payment_intent_id, intended_plan, status, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (payment_intent_id) WHERE payment_intent_id IS NOT NULL DO NOTHING;
	`, anonymousID, nullIfEmpty(paymentIntentID), plan, models.PendingPaid)
	return err
}

// ClaimPendingSubscription flips the newest paid row for anonymousID to
// claimed and returns its intended plan. The claim is a single
// conditional UPDATE, so two concurrent authentications with the same
// cookie can never both claim the purchase. sql.ErrNoRows means nothing
// was there to claim.
func (s *Store) ClaimPendingSubscription(ctx context.Context, anonymousID, userID string) (models.Tier, error) {
	var plan models.Tier
	err := s.db.QueryRowContext(ctx, `
		UPDATE pending_subscriptions
		SET status = $1, claimed_by_user_id = $2
		WHERE id = (
			SELECT id
			FROM pending_subscriptions
			WHERE anonymous_id = $3 AND status = $4
			ORDER BY created_at DESC
			LIMIT 1
		) AND status = $4
		RETURNING intended_plan;
	`, models.PendingClaimed, userID, anonymousID, models.PendingPaid).Scan(&plan)
	if err != nil {
		return "", err
	}
	return plan, nil
}

// ClaimAnonymousPurchase runs once at authentication time for requests
// carrying an anonymous correlation id. A successful claim materializes a
// 7-day promotional subscription at the purchased plan.
func (s *Store) ClaimAnonymousPurchase(ctx context.Context, anonymousID, userID string) error {
	plan, err := s.ClaimPendingSubscription(ctx, anonymousID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if !models.ValidTier(plan) {
		log.Printf("pending claim: unknown plan %q for anon=%s, defaulting to free", plan, anonymousID)
		plan = models.TierFree
	}

	now := time.Now().UTC()
	end := now.Add(7 * 24 * time.Hour)
	sub := models.Subscription{
		UserID:             userID,
		Tier:               plan,
		Status:             models.StatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
	}
	if err := s.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	log.Printf("pending claim: granted %s until %s user=%s anon=%s", plan, end.Format(time.RFC3339), userID, anonymousID)
	return nil
}
