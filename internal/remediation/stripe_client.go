package remediation

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the remediation service
// can be tested.
func NewStripeClient(api *stripeclient.Client) StripeRemediationClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

// Customers walks the full customer list. Pagination is handled by the
// iterator; the backfill runs rarely enough that loading all pages is fine.
func (w *stripeClientWrapper) Customers(ctx context.Context) ([]*stripe.Customer, error) {
	params := &stripe.CustomerListParams{}
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

func (w *stripeClientWrapper) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.Update(id, params)
}
