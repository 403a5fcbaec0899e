package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"

	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
)

// Clerk error code for passwords found in breach data.
const clerkPasswordPwnedCode = "form_password_pwned"

type publicMetadata struct {
	Role             Role   `json:"role,omitempty"`
	StripeCustomerID string `json:"stripeCustomerId,omitempty"`
	PasswordReset    bool   `json:"passwordResetRequired,omitempty"`
}

// ClerkDirectory implements Directory against the Clerk backend API.
type ClerkDirectory struct{}

// NewClerkDirectory configures the global Clerk client and returns the
// directory. The SDK carries the key process-wide, matching how the Stripe
// client is initialized.
func NewClerkDirectory(secretKey string) (*ClerkDirectory, error) {
	if secretKey == "" {
		return nil, errors.New("clerk secret key is required")
	}
	clerk.SetKey(secretKey)
	return &ClerkDirectory{}, nil
}

func (d *ClerkDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	list, err := user.List(ctx, &user.ListParams{
		EmailAddresses: []string{email},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	if list == nil || len(list.Users) == 0 {
		return nil, nil
	}
	return fromClerkUser(list.Users[0]), nil
}

func (d *ClerkDirectory) Get(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	found, err := user.Get(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch user")
	}
	return fromClerkUser(found), nil
}

func (d *ClerkDirectory) Create(ctx context.Context, params CreateParams) (*User, error) {
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	meta, err := json.Marshal(publicMetadata{Role: params.Role})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	raw := json.RawMessage(meta)
	created, err := user.Create(ctx, &user.CreateParams{
		EmailAddresses: &[]string{email},
		FirstName:      optionalString(params.FirstName),
		LastName:       optionalString(params.LastName),
		Password:       optionalString(params.Password),
		PublicMetadata: &raw,
	})
	if err != nil {
		if isPasswordPwned(err) {
			return nil, ErrPasswordCompromised
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return fromClerkUser(created), nil
}

func (d *ClerkDirectory) SetRole(ctx context.Context, userID string, role Role) error {
	return d.mergeMetadata(ctx, userID, func(meta *publicMetadata) {
		meta.Role = role
	})
}

func (d *ClerkDirectory) LinkStripeCustomer(ctx context.Context, userID, customerID string, role Role) error {
	return d.mergeMetadata(ctx, userID, func(meta *publicMetadata) {
		meta.StripeCustomerID = customerID
		meta.Role = role
	})
}

func (d *ClerkDirectory) FlagPasswordReset(ctx context.Context, userID string) error {
	return d.mergeMetadata(ctx, userID, func(meta *publicMetadata) {
		meta.PasswordReset = true
	})
}

// mergeMetadata reads the current public metadata, applies the mutation and
// writes the whole object back. Clerk replaces unknown keys on update, so the
// read keeps fields this service does not own.
func (d *ClerkDirectory) mergeMetadata(ctx context.Context, userID string, mutate func(*publicMetadata)) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	current, err := user.Get(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch user")
	}

	payload, err := mergedMetadataPayload(current.PublicMetadata, mutate)
	if err != nil {
		return err
	}
	if _, err := user.UpdateMetadata(ctx, userID, &user.UpdateMetadataParams{
		PublicMetadata: payload,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user metadata")
	}
	return nil
}

// mergedMetadataPayload layers the mutated fields this service owns over the
// account's existing metadata and re-encodes the whole object for Clerk's
// replace-style update.
func mergedMetadataPayload(current json.RawMessage, mutate func(*publicMetadata)) (*json.RawMessage, error) {
	merged := map[string]any{}
	var meta publicMetadata
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			merged = map[string]any{}
		}
		_ = json.Unmarshal(current, &meta)
	}
	mutate(&meta)
	if meta.Role != "" {
		merged["role"] = string(meta.Role)
	}
	if meta.StripeCustomerID != "" {
		merged["stripeCustomerId"] = meta.StripeCustomerID
	}
	if meta.PasswordReset {
		merged["passwordResetRequired"] = true
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	payload := json.RawMessage(encoded)
	return &payload, nil
}

func fromClerkUser(u *clerk.User) *User {
	if u == nil {
		return nil
	}
	out := &User{ID: u.ID}
	if u.FirstName != nil {
		out.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		out.LastName = *u.LastName
	}
	if len(u.EmailAddresses) > 0 && u.EmailAddresses[0] != nil {
		out.Email = NormalizeEmail(u.EmailAddresses[0].EmailAddress)
	}
	if len(u.PublicMetadata) > 0 {
		var meta publicMetadata
		if err := json.Unmarshal(u.PublicMetadata, &meta); err == nil {
			out.Role = meta.Role
			out.StripeCustomerID = meta.StripeCustomerID
		}
	}
	return out
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return clerk.String(value)
}

func isPasswordPwned(err error) bool {
	var apiErr *clerk.APIErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, e := range apiErr.Errors {
		if e.Code == clerkPasswordPwnedCode {
			return true
		}
	}
	return false
}
