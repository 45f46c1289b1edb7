// Package models defines subscription tiers, usage counters and user rows.
package models

import "time"

type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// ValidTier reports whether t is one of the known tiers.
func ValidTier(t Tier) bool {
	return t == TierFree || t == TierBasic || t == TierPro
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusInactive SubscriptionStatus = "inactive"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the single per-user entitlement row. A user with no row
// is treated as free/active. Canceled subscriptions are kept as
// tier=free, status=canceled rather than deleted.
type Subscription struct {
	UserID               string             `json:"user_id"`
	Tier                 Tier               `json:"tier"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
}

type PendingStatus string

const (
	PendingPaid    PendingStatus = "paid"
	PendingClaimed PendingStatus = "claimed"
)

// PendingSubscription records a purchase completed before the buyer had an
// account. The anonymous id is a client-generated correlation id carried in
// a cookie, matched against the row when the buyer later authenticates.
type PendingSubscription struct {
	ID              int64         `json:"id"`
	AnonymousID     string        `json:"anonymous_id"`
	PaymentIntentID string        `json:"payment_intent_id"`
	IntendedPlan    Tier          `json:"intended_plan"`
	Status          PendingStatus `json:"status"`
	ClaimedByUserID string        `json:"claimed_by_user_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}
