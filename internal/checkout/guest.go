package checkout

import (
	"context"
	"unicode"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
	"github.com/sugarcraft/academy-backend/internal/signup"
	"github.com/sugarcraft/academy-backend/pkg/config"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

// Subscription statuses that block a second signup for the same email.
var blockingGuestStatuses = []stripe.SubscriptionStatus{
	stripe.SubscriptionStatusActive,
	stripe.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusPastDue,
}

// GuestRequest is the signup-plus-checkout payload from the public storefront.
type GuestRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	PlanID    string `json:"planId" validate:"required"`
}

// Session is the provider checkout session handed back to the client.
type Session struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type planResolver interface {
	PlanPriceID(ctx context.Context, planID string) (string, error)
}

type pendingStash interface {
	Put(ctx context.Context, sessionID string, pending signup.PendingSignup) error
}

type GuestServiceParams struct {
	Directory identity.Directory
	Stripe    StripeCheckoutClient
	Catalog   planResolver
	Pending   pendingStash
	Checkout  config.CheckoutConfig
	Logger    *logger.Logger
}

// GuestService creates subscription checkouts for visitors without an
// account. Account creation is deferred to the completion webhook; until the
// payment settles nothing exists in Clerk or Stripe for the visitor beyond
// the session itself.
type GuestService struct {
	directory identity.Directory
	stripe    StripeCheckoutClient
	catalog   planResolver
	pending   pendingStash
	cfg       config.CheckoutConfig
	logg      *logger.Logger
}

func NewGuestService(params GuestServiceParams) (*GuestService, error) {
	if params.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity directory required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog client required")
	}
	if params.Pending == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending signup store required")
	}
	return &GuestService{
		directory: params.Directory,
		stripe:    params.Stripe,
		catalog:   params.Catalog,
		pending:   params.Pending,
		cfg:       params.Checkout,
		logg:      params.Logger,
	}, nil
}

// Start runs the guest pre-checks and creates the checkout session. The
// signup payload goes to the pending store keyed by session id; only the
// pendingSignup marker and plan id travel through provider metadata.
func (s *GuestService) Start(ctx context.Context, req GuestRequest) (*Session, error) {
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	email := identity.NormalizeEmail(req.Email)

	existing, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists, please log in")
	}

	customers, err := s.stripe.CustomersByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up customers")
	}
	for _, cust := range customers {
		subs, err := s.stripe.SubscriptionsByCustomer(ctx, cust.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up subscriptions")
		}
		if hasStatus(subs, blockingGuestStatuses) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "this email already has an active subscription")
		}
	}

	priceID, err := s.catalog.PlanPriceID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			signup.MetaPendingSignup: "true",
			signup.MetaPlanID:        req.PlanID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				signup.MetaPlanID: req.PlanID,
			},
		},
	}
	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	err = s.pending.Put(ctx, sess.ID, signup.PendingSignup{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     email,
		Password:  req.Password,
		PlanID:    req.PlanID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stash pending signup")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "session_id", sess.ID), "guest checkout session created")
	}
	return &Session{SessionID: sess.ID, URL: sess.URL}, nil
}

// ValidatePassword mirrors the storefront's client-side rules: at least 8
// characters with one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must contain at least one letter and one digit")
	}
	return nil
}

func hasStatus(subs []*stripe.Subscription, statuses []stripe.SubscriptionStatus) bool {
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		for _, status := range statuses {
			if sub.Status == status {
				return true
			}
		}
	}
	return false
}
