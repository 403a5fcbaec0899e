package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

// StripeWebhookClient exposes the subset of Stripe operations required by the
// webhook service.
type StripeWebhookClient interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the webhook service can
// be tested.
func NewStripeClient(api *stripeclient.Client) StripeWebhookClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (w *stripeClientWrapper) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Update(id, params)
}

func (w *stripeClientWrapper) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}
