package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	stripewebhook "github.com/sugarcraft/academy-backend/internal/webhooks/stripe"
)

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	guard := newGuard(t, newInMemoryStore())
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, guard, nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["received"] {
		t.Fatalf("expected {received:true}, got %s", rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	// Replay the same delivery.
	rec2 := post(handler, payload, header)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("duplicate must not be processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, newGuard(t, newInMemoryStore()), nil)

	rec := post(handler, payload, "t=1,v1=invalid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected {error:...}, got %s", rec.Body.String())
	}
	if service.calls != 0 {
		t.Fatalf("service must not run on invalid signature")
	}
}

func TestStripeWebhook_HandlerFailureStillAcknowledges(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{err: errors.New("provider down")}
	store := newInMemoryStore()
	handler := StripeWebhook(service, &fakeSigningClient{secret: "whsec_test"}, newGuard(t, store), nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("post-signature failures must still return 200, got %d", rec.Code)
	}

	// The event id was released, so the redelivery is processed again.
	service.err = nil
	rec2 := post(handler, payload, header)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("redelivery after failure must be retried, call count %d", service.calls)
	}
}

func newGuard(t *testing.T, store *inMemoryStore) *stripewebhook.IdempotencyGuard {
	t.Helper()
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Minute, "stripe-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func post(handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:       "cs_" + uuid.NewString(),
		Mode:     stripe.CheckoutSessionModeSubscription,
		Customer: &stripe.Customer{ID: "cus_1"},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	header := buildStripeSignatureHeader(payload, "whsec_test", time.Now().Unix())
	return payload, header
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	calls int
	err   error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("sca:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
