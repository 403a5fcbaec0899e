package entitlements

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
)

func TestVerifyEbookPurchase_MatchesByRecordedCustomer(t *testing.T) {
	dir := &directoryStub{users: map[string]*identity.User{
		"user_1": {ID: "user_1", Email: "ada@test.com", StripeCustomerID: "cus_1"},
	}}
	stripeStub := &stripeStub{
		sessions: map[string][]*stripe.CheckoutSession{
			"cus_1": {{ID: "cs_1", PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}},
		},
		items: map[string][]*stripe.LineItem{
			"cs_1": {{Description: "Cake Decorating Ebook"}},
		},
	}
	svc := newService(t, dir, stripeStub)

	ok, err := svc.VerifyEbookPurchase(context.Background(), "user_1", "", "cake-decorating-ebook")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected purchase to verify")
	}
}

func TestVerifyEbookPurchase_FallsBackToEmailCustomers(t *testing.T) {
	dir := &directoryStub{users: map[string]*identity.User{
		"user_1": {ID: "user_1", Email: "ada@test.com"},
	}}
	stripeStub := &stripeStub{
		customersByEmail: map[string][]*stripe.Customer{
			"ada@test.com": {{ID: "cus_9"}},
		},
		sessions: map[string][]*stripe.CheckoutSession{
			"cus_9": {{ID: "cs_9", PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}},
		},
		items: map[string][]*stripe.LineItem{
			"cs_9": {{Price: &stripe.Price{Product: &stripe.Product{Name: "Cake Decorating Ebook"}}}},
		},
	}
	svc := newService(t, dir, stripeStub)

	ok, err := svc.VerifyEbookPurchase(context.Background(), "user_1", "", "cake-decorating-ebook")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected purchase to verify via email customers")
	}
}

func TestVerifyEbookPurchase_NoMatch(t *testing.T) {
	dir := &directoryStub{users: map[string]*identity.User{
		"user_1": {ID: "user_1", Email: "ada@test.com", StripeCustomerID: "cus_1"},
	}}
	stripeStub := &stripeStub{
		sessions: map[string][]*stripe.CheckoutSession{
			"cus_1": {{ID: "cs_1", PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid}},
		},
		items: map[string][]*stripe.LineItem{
			"cs_1": {{Description: "Monthly Membership"}},
		},
	}
	svc := newService(t, dir, stripeStub)

	ok, err := svc.VerifyEbookPurchase(context.Background(), "user_1", "", "cake-decorating-ebook")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("membership line item must not grant the ebook")
	}
}

func newService(t *testing.T, dir identity.Directory, client StripeEntitlementsClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Directory: dir, Stripe: client})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type directoryStub struct {
	users map[string]*identity.User
}

func (d *directoryStub) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return nil, nil
}

func (d *directoryStub) Get(ctx context.Context, userID string) (*identity.User, error) {
	return d.users[userID], nil
}

func (d *directoryStub) Create(ctx context.Context, params identity.CreateParams) (*identity.User, error) {
	return nil, nil
}

func (d *directoryStub) SetRole(ctx context.Context, userID string, role identity.Role) error {
	return nil
}

func (d *directoryStub) LinkStripeCustomer(ctx context.Context, userID, customerID string, role identity.Role) error {
	return nil
}

func (d *directoryStub) FlagPasswordReset(ctx context.Context, userID string) error {
	return nil
}

type stripeStub struct {
	customersByEmail map[string][]*stripe.Customer
	sessions         map[string][]*stripe.CheckoutSession
	items            map[string][]*stripe.LineItem
}

func (s *stripeStub) CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error) {
	return s.customersByEmail[email], nil
}

func (s *stripeStub) PaidSessionsByCustomer(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error) {
	return s.sessions[customerID], nil
}

func (s *stripeStub) SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	return s.items[sessionID], nil
}
