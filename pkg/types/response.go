// Package types holds the JSON envelopes shared by every academy endpoint.
// The Next.js storefront unwraps `data` on success and switches on
// `error.code` on failure, so these shapes are part of the public contract.
// The Stripe webhook endpoint is the one exception: it answers with the raw
// acknowledgement body Stripe expects instead of these envelopes.
package types

// SuccessEnvelope wraps every 2xx payload: checkout URLs, entitlement
// lookups, catalog items, remediation reports.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the machine-readable failure body. Code mirrors the internal
// error taxonomy (validation, conflict, dependency, internal) so the
// storefront can distinguish "account already exists" from a transient
// provider outage.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
