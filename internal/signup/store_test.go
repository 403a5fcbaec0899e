package signup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStore_PutAndTake(t *testing.T) {
	backend := newFakeBackend()
	store, err := NewStore(backend, time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	pending := PendingSignup{
		FirstName: "Ada",
		LastName:  "Baker",
		Email:     "a@test.com",
		Password:  "correct-horse-battery",
		PlanID:    "monthly",
	}
	if err := store.Put(context.Background(), "cs_test_123", pending); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := store.Take(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if !found {
		t.Fatalf("expected payload")
	}
	if got != pending {
		t.Fatalf("got %+v", got)
	}

	// Take removes the key; a second read finds nothing.
	_, found, err = store.Take(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("second take: %v", err)
	}
	if found {
		t.Fatalf("expected payload consumed")
	}
}

func TestStore_TakeMissing(t *testing.T) {
	store, err := NewStore(newFakeBackend(), time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, found, err := store.Take(context.Background(), "cs_unknown")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if found {
		t.Fatalf("expected not found")
	}
}

func TestFromSessionMetadata(t *testing.T) {
	dec := staticDecrypter{plain: "hunter2hunter2"}

	meta := map[string]string{
		MetaPendingSignup: "true",
		MetaFirstName:     "Ada",
		MetaLastName:      "Baker",
		MetaEmail:         "a@test.com",
		MetaPassword:      "sealed",
		MetaPlanID:        "monthly",
	}
	pending, found, err := FromSessionMetadata(meta, dec)
	if err != nil {
		t.Fatalf("from metadata: %v", err)
	}
	if !found {
		t.Fatalf("expected pending signup")
	}
	if pending.Password != "hunter2hunter2" {
		t.Fatalf("password not decrypted: %q", pending.Password)
	}
	if pending.Email != "a@test.com" || pending.PlanID != "monthly" {
		t.Fatalf("unexpected payload %+v", pending)
	}
}

func TestFromSessionMetadata_SkipsSettledSessions(t *testing.T) {
	meta := map[string]string{
		MetaPendingSignup: "true",
		MetaClerkUserID:   "user_1",
		MetaEmail:         "a@test.com",
		MetaPassword:      "sealed",
	}
	if _, found, _ := FromSessionMetadata(meta, nil); found {
		t.Fatalf("session with an attached account must not be treated as pending")
	}

	if _, found, _ := FromSessionMetadata(map[string]string{MetaPendingSignup: "false"}, nil); found {
		t.Fatalf("non-pending session must not match")
	}

	if _, found, _ := FromSessionMetadata(map[string]string{MetaPendingSignup: "true"}, nil); found {
		t.Fatalf("pending session without email/password must not match")
	}
}

func TestFromSessionMetadata_UnreadablePassword(t *testing.T) {
	meta := map[string]string{
		MetaPendingSignup: "true",
		MetaEmail:         "a@test.com",
		MetaPassword:      "sealed",
	}
	_, found, err := FromSessionMetadata(meta, failingDecrypter{})
	if err == nil {
		t.Fatalf("garbled ciphertext must surface an error")
	}
	if found {
		t.Fatalf("unreadable signup must not be returned as pending")
	}
}

type staticDecrypter struct {
	plain string
}

func (d staticDecrypter) Decrypt(value string) (string, error) {
	return d.plain, nil
}

type failingDecrypter struct{}

func (failingDecrypter) Decrypt(value string) (string, error) {
	return "", errors.New("ciphertext failed authentication")
}

type fakeBackend struct {
	data map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]string{}}
}

func (f *fakeBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (f *fakeBackend) Get(ctx context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeBackend) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeBackend) PendingSignupKey(sessionID string) string {
	return "sca:pending_signup:" + sessionID
}
