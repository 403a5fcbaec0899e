package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

// StripeCheckoutClient exposes the subset of Stripe operations required by the
// checkout services.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error)
	SubscriptionsByCustomer(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the checkout services
// can be tested.
func NewStripeClient(api *stripeclient.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (w *stripeClientWrapper) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *stripeClientWrapper) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return customer.Get(id, params)
}

func (w *stripeClientWrapper) CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	iter := customer.List(params)
	var out []*stripe.Customer
	for iter.Next() {
		out = append(out, iter.Customer())
	}
	return out, iter.Err()
}

func (w *stripeClientWrapper) SubscriptionsByCustomer(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	iter := subscription.List(params)
	var out []*stripe.Subscription
	for iter.Next() {
		out = append(out, iter.Subscription())
	}
	return out, iter.Err()
}
