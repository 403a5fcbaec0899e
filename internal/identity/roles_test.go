package identity

import (
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestRoleForSubscriptionStatus(t *testing.T) {
	cases := []struct {
		name          string
		status        stripe.SubscriptionStatus
		invoiceFailed bool
		wantRole      Role
		wantChange    bool
	}{
		{"active", stripe.SubscriptionStatusActive, false, RoleSubscriber, true},
		{"trialing", stripe.SubscriptionStatusTrialing, false, RoleSubscriber, true},
		{"canceled", stripe.SubscriptionStatusCanceled, false, RoleCustomer, true},
		{"past_due after failed invoice", stripe.SubscriptionStatusPastDue, true, RoleCustomer, true},
		{"past_due without failed invoice", stripe.SubscriptionStatusPastDue, false, "", false},
		{"incomplete", stripe.SubscriptionStatusIncomplete, false, "", false},
		{"incomplete_expired", stripe.SubscriptionStatusIncompleteExpired, false, "", false},
		{"unpaid", stripe.SubscriptionStatusUnpaid, false, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, changed := RoleForSubscriptionStatus(tc.status, tc.invoiceFailed)
			if changed != tc.wantChange {
				t.Fatalf("changed=%v, want %v", changed, tc.wantChange)
			}
			if role != tc.wantRole {
				t.Fatalf("role=%q, want %q", role, tc.wantRole)
			}
		})
	}
}
