package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Skibfizz/studydrop-backend/app/models"
)

// GetSubscription returns the user's entitlement row. A user without a
// row is implicitly free/active.
func (s *Store) GetSubscription(ctx context.Context, userID string) (models.Subscription, error) {
	sub := models.Subscription{UserID: userID}
	var (
		customerID     sql.NullString
		subscriptionID sql.NullString
		periodStart    sql.NullTime
		periodEnd      sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tier, status, stripe_customer_id, stripe_subscription_id,
		       current_period_start, current_period_end, cancel_at_period_end
		FROM subscriptions
		WHERE user_id = $1;
	`, userID).Scan(
		&sub.Tier,
		&sub.Status,
		&customerID,
		&subscriptionID,
		&periodStart,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		sub.Tier = models.TierFree
		sub.Status = models.StatusActive
		return sub, nil
	}
	if err != nil {
		return models.Subscription{}, err
	}
	sub.StripeCustomerID = customerID.String
	sub.StripeSubscriptionID = subscriptionID.String
	if periodStart.Valid {
		t := periodStart.Time
		sub.CurrentPeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

// UpsertSubscription creates or replaces the single entitlement row for
// sub.UserID. The conflict target is user_id, which is what makes every
// billing transition safe to replay.
func (s *Store) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, stripe_customer_id, stripe_subscription_id,
		                           current_period_start, current_period_end, cancel_at_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    status = EXCLUDED.status,
		    stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
		    stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		    current_period_start = EXCLUDED.current_period_start,
		    current_period_end = EXCLUDED.current_period_end,
		    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		    updated_at = now();
	`,
		sub.UserID,
		sub.Tier,
		sub.Status,
		nullIfEmpty(sub.StripeCustomerID),
		nullIfEmpty(sub.StripeSubscriptionID),
		nullTime(sub.CurrentPeriodStart),
		nullTime(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
	)
	return err
}

// SetTier overrides the tier for a user without touching billing
// metadata, creating the row if needed. Used by the manual plan endpoint.
func (s *Store) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    status = EXCLUDED.status,
		    updated_at = now();
	`, userID, tier, models.StatusActive)
	return err
}

// CancelSubscriptionByCustomer forces the row for a Stripe customer to
// tier=free status=canceled. Applying it twice leaves the row unchanged.
func (s *Store) CancelSubscriptionByCustomer(ctx context.Context, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET tier = $1,
		    status = $2,
		    cancel_at_period_end = false,
		    updated_at = now()
		WHERE stripe_customer_id = $3;
	`, models.TierFree, models.StatusCanceled, customerID)
	return err
}

// UserIDForStripeCustomer resolves a Stripe customer id to our user id
// via the stored mapping. sql.ErrNoRows means the customer is unknown.
func (s *Store) UserIDForStripeCustomer(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM subscriptions
		WHERE stripe_customer_id = $1;
	`, customerID).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

// SetStripeCustomerID records the customer mapping as soon as a customer
// object is created, before any subscription exists.
func (s *Store) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, stripe_customer_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = EXCLUDED.stripe_customer_id,
		    updated_at = now();
	`, userID, models.TierFree, models.StatusActive, customerID)
	return err
}

func (s *Store) currentTier(ctx context.Context, userID string) (models.Tier, error) {
	var tier models.Tier
	err := s.db.QueryRowContext(ctx, `
		SELECT tier
		FROM subscriptions
		WHERE user_id = $1;
	`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
