package entitlements

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

// StripeEntitlementsClient exposes the subset of Stripe operations required
// for purchase verification.
type StripeEntitlementsClient interface {
	CustomersByEmail(ctx context.Context, email string) ([]*stripe.Customer, error)
	PaidSessionsByCustomer(ctx context.Context, customerID string) ([]*stripe.CheckoutSession, error)
	SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

type ServiceParams struct {
	Directory identity.Directory
	Stripe    StripeEntitlementsClient
	Logger    *logger.Logger
}

// Service answers whether an account has paid for a given product by walking
// its checkout history. The linear scan over sessions and line items is fine
// at current volume; revisit if the catalog grows past a handful of one-time
// products.
type Service struct {
	directory identity.Directory
	stripe    StripeEntitlementsClient
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity directory required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		directory: params.Directory,
		stripe:    params.Stripe,
		logg:      params.Logger,
	}, nil
}

// VerifyEbookPurchase reports whether the user has a settled checkout whose
// line items name the product. The customer id recorded on the account is
// checked first, then any customers sharing the email.
func (s *Service) VerifyEbookPurchase(ctx context.Context, userID, email, slug string) (bool, error) {
	if slug == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}

	customerIDs, err := s.candidateCustomers(ctx, userID, email)
	if err != nil {
		return false, err
	}
	for _, customerID := range customerIDs {
		sessions, err := s.stripe.PaidSessionsByCustomer(ctx, customerID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list checkout sessions")
		}
		for _, sess := range sessions {
			if sess == nil || sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
				continue
			}
			items, err := s.stripe.SessionLineItems(ctx, sess.ID)
			if err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list line items")
			}
			if matchesProduct(items, slug) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) candidateCustomers(ctx context.Context, userID, email string) ([]string, error) {
	var ids []string
	seen := map[string]bool{}

	if userID != "" {
		user, err := s.directory.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			if user.StripeCustomerID != "" {
				ids = append(ids, user.StripeCustomerID)
				seen[user.StripeCustomerID] = true
			}
			if email == "" {
				email = user.Email
			}
		}
	}

	if email != "" {
		customers, err := s.stripe.CustomersByEmail(ctx, identity.NormalizeEmail(email))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up customers")
		}
		for _, cust := range customers {
			if cust != nil && !seen[cust.ID] {
				ids = append(ids, cust.ID)
				seen[cust.ID] = true
			}
		}
	}
	return ids, nil
}

// matchesProduct compares the slug against line-item descriptions and product
// names, tolerating hyphen/space differences between the CMS slug and the
// Stripe product name.
func matchesProduct(items []*stripe.LineItem, slug string) bool {
	needle := normalizeProductName(slug)
	for _, item := range items {
		if item == nil {
			continue
		}
		if strings.Contains(normalizeProductName(item.Description), needle) {
			return true
		}
		if item.Price != nil && item.Price.Product != nil {
			if strings.Contains(normalizeProductName(item.Price.Product.Name), needle) {
				return true
			}
		}
	}
	return false
}

func normalizeProductName(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.ReplaceAll(value, "-", " ")
}
