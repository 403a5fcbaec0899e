package signup

// Metadata keys written by the storefront before the Redis store existed.
// Sessions created back then carried the whole signup payload in provider
// metadata, with the password encrypted (or, earlier still, in the clear).
const (
	MetaPendingSignup = "pendingSignup"
	MetaClerkUserID   = "clerkUserId"
	MetaFirstName     = "firstName"
	MetaLastName      = "lastName"
	MetaEmail         = "email"
	MetaPassword      = "encryptedPassword"
	MetaPlanID        = "planId"
)

// Decrypter decodes a password value from legacy metadata. Pre-encryption
// values pass through verbatim; a value that is sealed ciphertext but fails
// authentication returns an error.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// FromSessionMetadata recovers a pending signup from legacy checkout-session
// metadata. It returns found=false when the session does not carry a pending
// signup, or carries one that already has an account attached. A non-nil
// error means the session does carry one but its password cannot be
// recovered, so no account should be created from it.
func FromSessionMetadata(metadata map[string]string, dec Decrypter) (PendingSignup, bool, error) {
	if metadata == nil || metadata[MetaPendingSignup] != "true" {
		return PendingSignup{}, false, nil
	}
	if metadata[MetaClerkUserID] != "" {
		return PendingSignup{}, false, nil
	}

	pending := PendingSignup{
		FirstName: metadata[MetaFirstName],
		LastName:  metadata[MetaLastName],
		Email:     metadata[MetaEmail],
		Password:  metadata[MetaPassword],
		PlanID:    metadata[MetaPlanID],
	}
	if pending.Email == "" || pending.Password == "" {
		return PendingSignup{}, false, nil
	}
	if dec != nil {
		plain, err := dec.Decrypt(pending.Password)
		if err != nil {
			return PendingSignup{}, false, err
		}
		pending.Password = plain
	}
	return pending, true, nil
}
