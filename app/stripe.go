package app

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
)

// BillingClient is the slice of the payment processor the app talks to.
// Handlers and the reconciler depend on this interface rather than on
// package-level Stripe calls so tests can substitute a fake.
type BillingClient interface {
	NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// stripeBilling backs BillingClient with the real Stripe SDK.
type stripeBilling struct{}

// NewStripeBilling wires the Stripe API key and returns the live client.
func NewStripeBilling(secretKey string) BillingClient {
	stripe.Key = secretKey
	return stripeBilling{}
}

func (stripeBilling) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return customer.New(params)
}

func (stripeBilling) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return session.New(params)
}

func (stripeBilling) NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	params.Context = ctx
	return portal.New(params)
}

func (stripeBilling) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	return subscription.Get(id, &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}})
}

// ensureStripeCustomer finds or creates the Stripe customer for a user.
// New customers are stamped with metadata auth0_sub = <userID> so webhook
// events stay resolvable even before the mapping row lands.
func (a *API) ensureStripeCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}

	sub, err := a.store.GetSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"auth0_sub": userID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := a.billing.NewCustomer(ctx, params)
	if err != nil {
		return "", err
	}

	if err := a.store.SetStripeCustomerID(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
