package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Skibfizz/studydrop-backend/app/config"
	"github.com/Skibfizz/studydrop-backend/app/models"

	"github.com/stripe/stripe-go/v79"
)

// PriceTable maps Stripe price ids to tiers. Unknown prices resolve to
// free and are logged as anomalies by the reconciler.
type PriceTable map[string]models.Tier

// NewPriceTable builds the mapping from the configured price ids.
func NewPriceTable(cfg config.StripeConfig) PriceTable {
	pt := PriceTable{}
	if cfg.PriceIDBasicMonthly != "" {
		pt[cfg.PriceIDBasicMonthly] = models.TierBasic
	}
	if cfg.PriceIDProMonthly != "" {
		pt[cfg.PriceIDProMonthly] = models.TierPro
	}
	return pt
}

// TierFor resolves a price id, reporting whether it was recognized.
func (pt PriceTable) TierFor(priceID string) (models.Tier, bool) {
	tier, ok := pt[priceID]
	if !ok {
		return models.TierFree, false
	}
	return tier, true
}

// The webhook event taxonomy is a closed set: one variant per event type
// the reconciler acts on, plus an explicit no-op for everything else.
type billingEvent interface {
	billingEvent()
}

type subscriptionChanged struct {
	Subscription *stripe.Subscription
}

type subscriptionDeleted struct {
	CustomerID string
}

type checkoutCompleted struct {
	Session *stripe.CheckoutSession
}

type invoicePaid struct {
	SubscriptionID string
	CustomerID     string
}

type unhandledEvent struct {
	Type string
}

func (subscriptionChanged) billingEvent() {}
func (subscriptionDeleted) billingEvent() {}
func (checkoutCompleted) billingEvent()   {}
func (invoicePaid) billingEvent()         {}
func (unhandledEvent) billingEvent()      {}

// parseBillingEvent maps a verified Stripe event onto the closed union.
// Payload errors are returned so the webhook can answer non-2xx and let
// Stripe redeliver.
func parseBillingEvent(event stripe.Event) (billingEvent, error) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("subscription payload: %w", err)
		}
		return subscriptionChanged{Subscription: &sub}, nil
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("subscription payload: %w", err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, errors.New("subscription payload missing customer id")
		}
		return subscriptionDeleted{CustomerID: sub.Customer.ID}, nil
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("checkout session payload: %w", err)
		}
		return checkoutCompleted{Session: &sess}, nil
	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("invoice payload: %w", err)
		}
		ev := invoicePaid{}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		return ev, nil
	default:
		return unhandledEvent{Type: string(event.Type)}, nil
	}
}

// Reconciler applies billing events to the entitlement store. Every
// transition is an upsert keyed on user_id computed from the event's view
// of external state, so redelivered events converge on the same row.
type Reconciler struct {
	store   *Store
	billing BillingClient
	prices  PriceTable
}

func NewReconciler(store *Store, billing BillingClient, prices PriceTable) *Reconciler {
	return &Reconciler{store: store, billing: billing, prices: prices}
}

// Apply dispatches one parsed event. A nil error means the event was
// fully absorbed (including the deliberate log-and-drop cases).
func (r *Reconciler) Apply(ctx context.Context, ev billingEvent) error {
	switch e := ev.(type) {
	case subscriptionChanged:
		return r.applySubscription(ctx, e.Subscription)
	case subscriptionDeleted:
		return r.applyDeleted(ctx, e.CustomerID)
	case checkoutCompleted:
		return r.applyCheckout(ctx, e.Session)
	case invoicePaid:
		return r.applyInvoicePaid(ctx, e)
	case unhandledEvent:
		return nil
	default:
		return fmt.Errorf("unknown billing event %T", ev)
	}
}

// applySubscription mirrors the full Stripe subscription object into the
// entitlement row: tier from the price id, status from the subscription
// status, and the current billing window.
func (r *Reconciler) applySubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil || sub.Customer == nil || sub.Customer.ID == "" {
		return errors.New("subscription missing customer id")
	}

	userID, err := r.resolveUser(ctx, sub.Customer.ID, sub.Metadata)
	if err != nil {
		return err
	}
	if userID == "" {
		log.Printf("billing: no user for customer=%s, dropping event", sub.Customer.ID)
		return nil
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	tier, known := r.prices.TierFor(priceID)
	if !known {
		log.Printf("billing: unknown price=%q customer=%s, defaulting to free", priceID, sub.Customer.ID)
	}

	start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
	end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()

	return r.store.UpsertSubscription(ctx, models.Subscription{
		UserID:               userID,
		Tier:                 tier,
		Status:               statusFromStripe(sub.Status),
		StripeCustomerID:     sub.Customer.ID,
		StripeSubscriptionID: sub.ID,
		CurrentPeriodStart:   &start,
		CurrentPeriodEnd:     &end,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	})
}

// applyDeleted forces tier=free status=canceled regardless of any
// period-end bookkeeping. The row is kept.
func (r *Reconciler) applyDeleted(ctx context.Context, customerID string) error {
	userID, err := r.resolveUser(ctx, customerID, nil)
	if err != nil {
		return err
	}
	if userID == "" {
		log.Printf("billing: no user for deleted customer=%s, dropping event", customerID)
		return nil
	}
	return r.store.CancelSubscriptionByCustomer(ctx, customerID)
}

// applyCheckout handles both checkout shapes: subscription-mode sessions
// replay the subscription transition from a fresh fetch (the webhook
// payload for this event is not self-sufficient); payment-mode sessions
// carrying anonymous metadata become pending pre-signup purchases.
func (r *Reconciler) applyCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess == nil {
		return errors.New("nil checkout session")
	}

	if anonID := sess.Metadata["anonymous_id"]; anonID != "" && sess.Mode == stripe.CheckoutSessionModePayment {
		plan := models.Tier(sess.Metadata["intended_plan"])
		if !models.ValidTier(plan) {
			log.Printf("billing: anonymous checkout with unknown plan=%q anon=%s", plan, anonID)
			plan = models.TierFree
		}
		paymentIntentID := ""
		if sess.PaymentIntent != nil {
			paymentIntentID = sess.PaymentIntent.ID
		}
		return r.store.InsertPendingSubscription(ctx, anonID, paymentIntentID, plan)
	}

	if sess.Subscription == nil || sess.Subscription.ID == "" {
		log.Printf("billing: checkout session %s has no subscription, dropping", sess.ID)
		return nil
	}
	full, err := r.billing.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return fmt.Errorf("refetch subscription %s: %w", sess.Subscription.ID, err)
	}
	return r.applySubscription(ctx, full)
}

func (r *Reconciler) applyInvoicePaid(ctx context.Context, ev invoicePaid) error {
	if ev.SubscriptionID == "" {
		log.Printf("billing: invoice without subscription customer=%s, dropping", ev.CustomerID)
		return nil
	}
	full, err := r.billing.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("refetch subscription %s: %w", ev.SubscriptionID, err)
	}
	return r.applySubscription(ctx, full)
}

// resolveUser maps a Stripe customer to our user id, preferring the
// stored mapping and falling back to the auth0_sub metadata stamped on
// the customer at creation time.
func (r *Reconciler) resolveUser(ctx context.Context, customerID string, metadata map[string]string) (string, error) {
	userID, err := r.store.UserIDForStripeCustomer(ctx, customerID)
	if err == nil && userID != "" {
		return userID, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if sub := metadata["auth0_sub"]; sub != "" {
		return sub, nil
	}
	return "", nil
}

func statusFromStripe(s stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.StatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.StatusCanceled
	default:
		return models.StatusInactive
	}
}
