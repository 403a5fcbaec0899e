package identity

import (
	"encoding/json"
	"testing"
)

func TestMergedMetadataPayload_PreservesForeignKeys(t *testing.T) {
	current := json.RawMessage(`{"onboardingStep":"profile","role":"customer"}`)

	payload, err := mergedMetadataPayload(current, func(meta *publicMetadata) {
		meta.Role = RoleSubscriber
		meta.StripeCustomerID = "cus_123"
	})
	if err != nil {
		t.Fatalf("mergedMetadataPayload: %v", err)
	}
	if payload == nil {
		t.Fatal("payload must not be nil")
	}

	var got map[string]any
	if err := json.Unmarshal(*payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["onboardingStep"] != "profile" {
		t.Fatalf("foreign key dropped: %v", got)
	}
	if got["role"] != string(RoleSubscriber) {
		t.Fatalf("role=%v, want %q", got["role"], RoleSubscriber)
	}
	if got["stripeCustomerId"] != "cus_123" {
		t.Fatalf("stripeCustomerId=%v, want cus_123", got["stripeCustomerId"])
	}
}

func TestMergedMetadataPayload_EmptyCurrent(t *testing.T) {
	payload, err := mergedMetadataPayload(nil, func(meta *publicMetadata) {
		meta.PasswordReset = true
	})
	if err != nil {
		t.Fatalf("mergedMetadataPayload: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(*payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["passwordResetRequired"] != true {
		t.Fatalf("passwordResetRequired=%v, want true", got["passwordResetRequired"])
	}
	if _, ok := got["role"]; ok {
		t.Fatalf("empty role must not be written: %v", got)
	}
}

func TestMergedMetadataPayload_MalformedCurrent(t *testing.T) {
	payload, err := mergedMetadataPayload(json.RawMessage(`not json`), func(meta *publicMetadata) {
		meta.Role = RoleCustomer
	})
	if err != nil {
		t.Fatalf("mergedMetadataPayload: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(*payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["role"] != string(RoleCustomer) {
		t.Fatalf("role=%v, want %q", got["role"], RoleCustomer)
	}
}
