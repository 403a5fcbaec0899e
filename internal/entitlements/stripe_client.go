package entitlements

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"

	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the entitlements
// service can be tested.
func NewStripeClient(api *stripeclient.Client) StripeEntitlementsClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
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

func (w *stripeClientWrapper) PaidSessionsByCustomer(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	iter := session.List(params)
	var out []*stripe.CheckoutSession
	for iter.Next() {
		sess := iter.CheckoutSession()
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out = append(out, sess)
		}
	}
	return out, iter.Err()
}

func (w *stripeClientWrapper) SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	iter := session.ListLineItems(params)
	var out []*stripe.LineItem
	for iter.Next() {
		out = append(out, iter.LineItem())
	}
	return out, iter.Err()
}
