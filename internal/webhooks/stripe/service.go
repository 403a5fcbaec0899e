package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v84"

	"github.com/sugarcraft/academy-backend/internal/identity"
	"github.com/sugarcraft/academy-backend/internal/signup"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/metrics"
	"github.com/sugarcraft/academy-backend/pkg/security"
)

const generatedPasswordLength = 24

type pendingTaker interface {
	Take(ctx context.Context, sessionID string) (signup.PendingSignup, bool, error)
}

type welcomeMailer interface {
	SendWelcome(ctx context.Context, to, firstName string, needsPasswordReset bool) error
}

type ServiceParams struct {
	Directory identity.Directory
	Stripe    StripeWebhookClient
	Pending   pendingTaker
	Decrypter signup.Decrypter
	Mailer    welcomeMailer
	Metrics   *metrics.WebhookMetrics
	Logger    *logger.Logger
}

// Service reconciles Stripe billing events with the identity provider. It is
// the only place a guest checkout turns into an account.
type Service struct {
	directory identity.Directory
	stripe    StripeWebhookClient
	pending   pendingTaker
	decrypter signup.Decrypter
	mailer    welcomeMailer
	metrics   *metrics.WebhookMetrics
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Directory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "identity directory required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Pending == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pending signup store required")
	}
	return &Service{
		directory: params.Directory,
		stripe:    params.Stripe,
		pending:   params.Pending,
		decrypter: params.Decrypter,
		mailer:    params.Mailer,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// HandleEvent dispatches a verified event to its typed handler. Unhandled
// event types are acknowledged without work.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if decodeErr := json.Unmarshal(event.Data.Raw, &sess); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode checkout session event")
			break
		}
		err = s.handleCheckoutCompleted(ctx, &sess)
	case stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if decodeErr := json.Unmarshal(event.Data.Raw, &sub); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode subscription event")
			break
		}
		err = s.syncSubscriptionRole(ctx, &sub, false)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := invoiceSubscriptionID(event)
		if subscriptionID == "" {
			s.metrics.IncEvent(eventType, metrics.OutcomeSkipped)
			return nil
		}
		sub, fetchErr := s.stripe.GetSubscription(ctx, subscriptionID)
		if fetchErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, fetchErr, "fetch stripe subscription")
			break
		}
		err = s.syncSubscriptionRole(ctx, sub, event.Type == stripe.EventTypeInvoicePaymentFailed)
	default:
		s.metrics.IncEvent(eventType, metrics.OutcomeSkipped)
		return nil
	}

	if err != nil {
		s.metrics.IncEvent(eventType, metrics.OutcomeError)
		return err
	}
	s.metrics.IncEvent(eventType, metrics.OutcomeOK)
	return nil
}

// handleCheckoutCompleted attaches the paid checkout to an account: linking
// the Stripe customer to an existing user, or creating the deferred account
// stashed at session-creation time.
func (s *Service) handleCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess == nil || sess.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}
	ctx = s.withField(ctx, "session_id", sess.ID)

	customerID := checkoutCustomerID(sess)
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "completed session has no customer")
	}
	ctx = s.withField(ctx, "stripe_customer_id", customerID)

	role := s.roleForSession(ctx, sess)

	// Sessions opened by a logged-in member carry their user id; only the
	// role needs syncing.
	if userID := sess.Metadata[signup.MetaClerkUserID]; userID != "" {
		return s.directory.LinkStripeCustomer(ctx, userID, customerID, role)
	}

	pending, found, err := s.pending.Take(ctx, sess.ID)
	if err != nil {
		return err
	}
	if !found {
		var metaErr error
		pending, found, metaErr = signup.FromSessionMetadata(sess.Metadata, s.decrypter)
		if metaErr != nil {
			// The stored password cannot be recovered, so an account created
			// now would lock the buyer out. Surface for manual remediation.
			s.logError(ctx, "signup metadata unreadable after settled payment, needs manual remediation", metaErr)
			return nil
		}
	}
	if !found {
		s.logInfo(ctx, "completed session has no pending signup, nothing to reconcile")
		return nil
	}

	email := identity.NormalizeEmail(pending.Email)
	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user != nil {
		if err := s.directory.LinkStripeCustomer(ctx, user.ID, customerID, role); err != nil {
			return err
		}
		s.finishProvisioning(ctx, sess, user, customerID, false)
		return nil
	}

	user, needsReset, err := s.createAccount(ctx, pending, role)
	if err != nil {
		// A concurrent delivery may have created the account between the
		// lookup and the create. Re-check once before giving up.
		if existing, findErr := s.directory.FindByEmail(ctx, email); findErr == nil && existing != nil {
			if linkErr := s.directory.LinkStripeCustomer(ctx, existing.ID, customerID, role); linkErr != nil {
				return linkErr
			}
			s.finishProvisioning(ctx, sess, existing, customerID, false)
			return nil
		}
		// Payment settled but no account exists. Surface for manual
		// remediation rather than bouncing the event forever.
		s.logError(ctx, "account creation failed after settled payment, needs manual remediation", err)
		return nil
	}
	if err := s.directory.LinkStripeCustomer(ctx, user.ID, customerID, role); err != nil {
		return err
	}
	s.finishProvisioning(ctx, sess, user, customerID, needsReset)
	return nil
}

// createAccount provisions the deferred account, retrying once with a
// generated password when the chosen one is rejected as compromised.
func (s *Service) createAccount(ctx context.Context, pending signup.PendingSignup, role identity.Role) (*identity.User, bool, error) {
	params := identity.CreateParams{
		Email:     pending.Email,
		FirstName: pending.FirstName,
		LastName:  pending.LastName,
		Password:  pending.Password,
		Role:      role,
	}
	user, err := s.directory.Create(ctx, params)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, identity.ErrPasswordCompromised) {
		return nil, false, err
	}

	s.logInfo(ctx, "chosen password found in breach data, provisioning with a generated one")
	generated, genErr := security.GeneratePassword(generatedPasswordLength)
	if genErr != nil {
		return nil, false, genErr
	}
	params.Password = generated
	user, err = s.directory.Create(ctx, params)
	if err != nil {
		return nil, false, err
	}
	if flagErr := s.directory.FlagPasswordReset(ctx, user.ID); flagErr != nil {
		s.logError(ctx, "flag password reset", flagErr)
	}
	return user, true, nil
}

// finishProvisioning runs the best-effort tail of reconciliation: marking the
// provider objects as settled and greeting the new subscriber. Failures here
// are logged, never propagated, because the account already exists.
func (s *Service) finishProvisioning(ctx context.Context, sess *stripe.CheckoutSession, user *identity.User, customerID string, needsReset bool) {
	custParams := &stripe.CustomerParams{
		Metadata: map[string]string{
			signup.MetaClerkUserID:   user.ID,
			signup.MetaPendingSignup: "false",
		},
	}
	if name := displayName(user); name != "" {
		custParams.Name = stripe.String(name)
	}
	if _, err := s.stripe.UpdateCustomer(ctx, customerID, custParams); err != nil {
		s.logError(ctx, "update customer metadata", err)
	}

	if subID := checkoutSubscriptionID(sess); subID != "" {
		_, err := s.stripe.UpdateSubscription(ctx, subID, &stripe.SubscriptionParams{
			Metadata: map[string]string{
				signup.MetaClerkUserID: user.ID,
			},
		})
		if err != nil {
			s.logError(ctx, "update subscription metadata", err)
		}
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, user.Email, user.FirstName, needsReset); err != nil {
			s.logError(ctx, "send welcome email", err)
		}
	}
}

// syncSubscriptionRole maps the subscription's status onto the owning
// account's role. Subscriptions without a linked account are ignored.
func (s *Service) syncSubscriptionRole(ctx context.Context, sub *stripe.Subscription, invoiceFailed bool) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	role, ok := identity.RoleForSubscriptionStatus(sub.Status, invoiceFailed)
	if !ok {
		return nil
	}

	userID := sub.Metadata[signup.MetaClerkUserID]
	if userID == "" {
		user, err := s.userForCustomer(ctx, sub)
		if err != nil {
			return err
		}
		if user == nil {
			s.logInfo(s.withField(ctx, "subscription_id", sub.ID), "subscription has no linked account, skipping role sync")
			return nil
		}
		userID = user.ID
	}
	return s.directory.SetRole(ctx, userID, role)
}

// userForCustomer falls back to an email lookup when the subscription carries
// no user id, covering subscriptions created before metadata linking.
func (s *Service) userForCustomer(ctx context.Context, sub *stripe.Subscription) (*identity.User, error) {
	if sub.Customer == nil {
		return nil, nil
	}
	email := sub.Customer.Email
	if email == "" {
		return nil, nil
	}
	return s.directory.FindByEmail(ctx, identity.NormalizeEmail(email))
}

// roleForSession derives the role from the session's subscription status,
// defaulting to subscriber when the subscription cannot be inspected: the
// checkout just completed, so the subscription is live.
func (s *Service) roleForSession(ctx context.Context, sess *stripe.CheckoutSession) identity.Role {
	subID := checkoutSubscriptionID(sess)
	if subID == "" {
		return identity.RoleSubscriber
	}
	sub, err := s.stripe.GetSubscription(ctx, subID)
	if err != nil {
		s.logError(ctx, "fetch subscription for role mapping", err)
		return identity.RoleSubscriber
	}
	if role, ok := identity.RoleForSubscriptionStatus(sub.Status, false); ok {
		return role
	}
	return identity.RoleSubscriber
}

// invoiceSubscriptionID pulls the owning subscription out of an invoice
// event. Newer API versions nest it under parent.subscription_details, older
// payloads carry it at the top level.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("parent", "subscription_details", "subscription")
}

func checkoutCustomerID(sess *stripe.CheckoutSession) string {
	if sess.Customer == nil {
		return ""
	}
	return sess.Customer.ID
}

func checkoutSubscriptionID(sess *stripe.CheckoutSession) string {
	if sess.Subscription == nil {
		return ""
	}
	return sess.Subscription.ID
}

func displayName(user *identity.User) string {
	switch {
	case user.FirstName == "":
		return user.LastName
	case user.LastName == "":
		return user.FirstName
	default:
		return user.FirstName + " " + user.LastName
	}
}

func (s *Service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}
