package remediation

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
	"github.com/sugarcraft/academy-backend/internal/signup"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/security"
)

const generatedPasswordLength = 24

// Subscription statuses that entitle the customer to an account.
var entitledStatuses = []stripe.SubscriptionStatus{
	stripe.SubscriptionStatusActive,
	stripe.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusPastDue,
}

// StripeRemediationClient exposes the subset of Stripe operations required by
// the account backfill.
type StripeRemediationClient interface {
	Customers(ctx context.Context) ([]*stripe.Customer, error)
	SubscriptionsByCustomer(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type welcomeMailer interface {
	SendWelcome(ctx context.Context, to, firstName string, needsPasswordReset bool) error
}

// Report summarizes one backfill run.
type Report struct {
	Scanned  int      `json:"scanned"`
	Orphaned int      `json:"orphaned"`
	Repaired int      `json:"repaired"`
	Failures []string `json:"failures,omitempty"`
	DryRun   bool     `json:"dryRun"`
}

type ServiceParams struct {
	Directory identity.Directory
	Stripe    StripeRemediationClient
	Mailer    welcomeMailer
	Logger    *logger.Logger
}

// Service backfills accounts for paying customers that a lost or failed
// webhook left without one.
type Service struct {
	directory identity.Directory
	stripe    StripeRemediationClient
	mailer    welcomeMailer
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
		mailer:    params.Mailer,
		logg:      params.Logger,
	}, nil
}

// FixMissingAccounts walks every Stripe customer with an entitled
// subscription and repairs the ones with no linked account. With dryRun the
// orphans are only counted.
func (s *Service) FixMissingAccounts(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}

	customers, err := s.stripe.Customers(ctx)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}

	for _, cust := range customers {
		if cust == nil {
			continue
		}
		report.Scanned++

		subs, err := s.stripe.SubscriptionsByCustomer(ctx, cust.ID)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: list subscriptions: %v", cust.ID, err))
			continue
		}
		if !hasEntitledSubscription(subs) {
			continue
		}
		if cust.Metadata[signup.MetaClerkUserID] != "" {
			continue
		}

		email := identity.NormalizeEmail(cust.Email)
		if email == "" {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: entitled customer has no email", cust.ID))
			continue
		}

		user, err := s.directory.FindByEmail(ctx, email)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: look up account: %v", cust.ID, err))
			continue
		}

		report.Orphaned++
		if dryRun {
			continue
		}

		if err := s.repair(ctx, cust, user, email); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", cust.ID, err))
			continue
		}
		report.Repaired++
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"scanned":  report.Scanned,
			"orphaned": report.Orphaned,
			"repaired": report.Repaired,
			"failures": len(report.Failures),
			"dry_run":  dryRun,
		}), "account backfill finished")
	}
	return report, nil
}

// repair creates the missing account (or links an existing one) and marks the
// customer so the next run skips it.
func (s *Service) repair(ctx context.Context, cust *stripe.Customer, user *identity.User, email string) error {
	created := false
	if user == nil {
		password, err := security.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return err
		}
		user, err = s.directory.Create(ctx, identity.CreateParams{
			Email:    email,
			Password: password,
			Role:     identity.RoleSubscriber,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		created = true
		if err := s.directory.FlagPasswordReset(ctx, user.ID); err != nil {
			return fmt.Errorf("flag password reset: %w", err)
		}
	}

	if err := s.directory.LinkStripeCustomer(ctx, user.ID, cust.ID, identity.RoleSubscriber); err != nil {
		return fmt.Errorf("link customer: %w", err)
	}

	_, err := s.stripe.UpdateCustomer(ctx, cust.ID, &stripe.CustomerParams{
		Metadata: map[string]string{
			signup.MetaClerkUserID:   user.ID,
			signup.MetaPendingSignup: "false",
		},
	})
	if err != nil {
		return fmt.Errorf("mark customer: %w", err)
	}

	if created && s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, email, user.FirstName, true); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithCustomerID(ctx, cust.ID), "send backfill welcome email", err)
		}
	}
	return nil
}

func hasEntitledSubscription(subs []*stripe.Subscription) bool {
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		for _, status := range entitledStatuses {
			if sub.Status == status {
				return true
			}
		}
	}
	return false
}
