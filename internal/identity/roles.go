package identity

import (
	"github.com/stripe/stripe-go/v84"
)

// Role is the authorization tier stored in the identity provider's public
// metadata. Subscribers see premium content; customers have an account but
// no active subscription.
type Role string

const (
	RoleSubscriber Role = "subscriber"
	RoleCustomer   Role = "customer"
)

// RoleForSubscriptionStatus maps a Stripe subscription status to the role it
// implies. invoiceFailed distinguishes past_due reached through a failed
// invoice payment (which demotes) from past_due observed on a plain
// subscription update (which does not change the role). The second return is
// false when the status implies no role change.
func RoleForSubscriptionStatus(status stripe.SubscriptionStatus, invoiceFailed bool) (Role, bool) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return RoleSubscriber, true
	case stripe.SubscriptionStatusCanceled:
		return RoleCustomer, true
	case stripe.SubscriptionStatusPastDue:
		if invoiceFailed {
			return RoleCustomer, true
		}
		return "", false
	default:
		return "", false
	}
}
