package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrPasswordCompromised is returned when the identity provider rejects a
// password because it appears in a breach corpus.
var ErrPasswordCompromised = errors.New("password found in breach data")

// User is the slice of an identity-provider account this service cares about.
type User struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	Role             Role
	StripeCustomerID string
}

// CreateParams carries everything needed to provision an account.
type CreateParams struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      Role
}

// Directory exposes the identity-provider operations used by checkout and
// webhook reconciliation.
type Directory interface {
	// FindByEmail returns nil, nil when no account owns the email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	Get(ctx context.Context, userID string) (*User, error)
	Create(ctx context.Context, params CreateParams) (*User, error)
	SetRole(ctx context.Context, userID string, role Role) error
	// LinkStripeCustomer stores the Stripe customer id on the account and
	// applies the given role in the same metadata write.
	LinkStripeCustomer(ctx context.Context, userID, customerID string, role Role) error
	// FlagPasswordReset marks the account as needing a password reset, used
	// after a generated-password fallback.
	FlagPasswordReset(ctx context.Context, userID string) error
}

// NormalizeEmail case-folds and trims an email so it can serve as a join key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
