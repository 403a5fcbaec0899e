package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
	"github.com/sugarcraft/academy-backend/internal/signup"
	"github.com/sugarcraft/academy-backend/pkg/config"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

// An authenticated member is blocked from a second subscription while any of
// these is in flight, incomplete included so a half-finished checkout cannot
// be doubled up.
var blockingMemberStatuses = []stripe.SubscriptionStatus{
	stripe.SubscriptionStatusActive,
	stripe.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusIncomplete,
}

type MemberServiceParams struct {
	Directory identity.Directory
	Stripe    StripeCheckoutClient
	Catalog   planResolver
	Checkout  config.CheckoutConfig
	Logger    *logger.Logger
}

// MemberService creates checkout sessions for logged-in Clerk users, bound to
// their Stripe customer.
type MemberService struct {
	directory identity.Directory
	stripe    StripeCheckoutClient
	catalog   planResolver
	cfg       config.CheckoutConfig
	logg      *logger.Logger
}

func NewMemberService(params MemberServiceParams) (*MemberService, error) {
	if params.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity directory required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog client required")
	}
	return &MemberService{
		directory: params.Directory,
		stripe:    params.Stripe,
		catalog:   params.Catalog,
		cfg:       params.Checkout,
		logg:      params.Logger,
	}, nil
}

// StartSubscription opens a subscription checkout for the member, refusing
// when they already carry a subscription in any blocking status.
func (s *MemberService) StartSubscription(ctx context.Context, userID, planID string) (*Session, error) {
	user, customerID, err := s.resolveCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	subs, err := s.stripe.SubscriptionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up subscriptions")
	}
	if hasStatus(subs, blockingMemberStatuses) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "you already have an active subscription")
	}

	priceID, err := s.catalog.PlanPriceID(ctx, planID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(s.cfg.SubscriptionSuccessURL),
		CancelURL:  stripe.String(s.cfg.SubscriptionCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			signup.MetaClerkUserID: user.ID,
			signup.MetaPlanID:      planID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				signup.MetaClerkUserID: user.ID,
				signup.MetaPlanID:      planID,
			},
		},
	}
	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &Session{SessionID: sess.ID, URL: sess.URL}, nil
}

// StartPurchase opens a one-time payment checkout for the member, used for
// ebooks and other digital products.
func (s *MemberService) StartPurchase(ctx context.Context, userID, priceID string, quantity int64) (*Session, error) {
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price id is required")
	}
	if quantity <= 0 {
		quantity = 1
	}

	user, customerID, err := s.resolveCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		Metadata: map[string]string{
			signup.MetaClerkUserID: user.ID,
		},
	}
	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &Session{SessionID: sess.ID, URL: sess.URL}, nil
}

// resolveCustomer finds the member's Stripe customer, preferring the id
// recorded in Clerk metadata, falling back to an email search, creating one
// when neither exists. A created or newly matched customer id is written back
// to Clerk so the next call skips the search.
func (s *MemberService) resolveCustomer(ctx context.Context, userID string) (*identity.User, string, error) {
	if userID == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	user, err := s.directory.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	if user.StripeCustomerID != "" {
		if _, err := s.stripe.GetCustomer(ctx, user.StripeCustomerID); err == nil {
			return user, user.StripeCustomerID, nil
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithCustomerID(ctx, user.StripeCustomerID), "recorded stripe customer unavailable, falling back to email search")
		}
	}

	customers, err := s.stripe.CustomersByEmail(ctx, user.Email)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up customers")
	}
	var customerID string
	if len(customers) > 0 && customers[0] != nil {
		customerID = customers[0].ID
	} else {
		created, err := s.stripe.CreateCustomer(ctx, &stripe.CustomerParams{
			Email: stripe.String(user.Email),
			Name:  stripe.String(fullName(user)),
			Metadata: map[string]string{
				signup.MetaClerkUserID: user.ID,
			},
		})
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
		}
		customerID = created.ID
	}

	if err := s.directory.LinkStripeCustomer(ctx, user.ID, customerID, user.Role); err != nil {
		return nil, "", err
	}
	user.StripeCustomerID = customerID
	return user, customerID, nil
}

func fullName(user *identity.User) string {
	switch {
	case user.FirstName == "":
		return user.LastName
	case user.LastName == "":
		return user.FirstName
	default:
		return user.FirstName + " " + user.LastName
	}
}
