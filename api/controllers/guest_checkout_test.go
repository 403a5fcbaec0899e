package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	checkoutsvc "github.com/sugarcraft/academy-backend/internal/checkout"
	"github.com/sugarcraft/academy-backend/internal/remediation"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
)

func TestGuestCheckout_ReturnsSession(t *testing.T) {
	svc := &fakeGuestService{session: &checkoutsvc.Session{SessionID: "cs_1", URL: "https://checkout.test/cs_1"}}
	handler := GuestCheckout(svc, nil, nil)

	rec := postJSON(handler, "/api/guest-checkout", map[string]any{
		"firstName": "Ada",
		"lastName":  "Baker",
		"email":     "ada@test.com",
		"password":  "sugar1234",
		"planId":    "monthly",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data checkoutsvc.Session `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.SessionID != "cs_1" || body.Data.URL == "" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestGuestCheckout_ConflictMapsTo409(t *testing.T) {
	svc := &fakeGuestService{err: pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists, please log in")}
	handler := GuestCheckout(svc, nil, nil)

	rec := postJSON(handler, "/api/guest-checkout", map[string]any{
		"firstName": "Ada",
		"lastName":  "Baker",
		"email":     "ada@test.com",
		"password":  "sugar1234",
		"planId":    "monthly",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestGuestCheckout_RejectsInvalidBody(t *testing.T) {
	svc := &fakeGuestService{}
	handler := GuestCheckout(svc, nil, nil)

	rec := postJSON(handler, "/api/guest-checkout", map[string]any{
		"email": "not-an-email",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run on invalid body")
	}
}

func TestFixMissingClerkAccounts_RejectsBadKey(t *testing.T) {
	svc := &fakeFixer{}
	handler := FixMissingClerkAccounts(svc, "real-key", nil)

	rec := postJSON(handler, "/api/admin/fix-missing-clerk-accounts", map[string]any{
		"adminKey": "wrong-key",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("backfill must not run with a bad key")
	}
}

func TestFixMissingClerkAccounts_DryRunFlag(t *testing.T) {
	svc := &fakeFixer{report: remediation.Report{Scanned: 3, Orphaned: 1, DryRun: true}}
	handler := FixMissingClerkAccounts(svc, "real-key", nil)

	rec := postJSON(handler, "/api/admin/fix-missing-clerk-accounts?dryRun=1", map[string]any{
		"adminKey": "real-key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !svc.dryRun {
		t.Fatalf("dryRun query flag not honored")
	}
}

func postJSON(handler http.HandlerFunc, target string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type fakeGuestService struct {
	session *checkoutsvc.Session
	err     error
	calls   int
}

func (f *fakeGuestService) Start(ctx context.Context, req checkoutsvc.GuestRequest) (*checkoutsvc.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeFixer struct {
	report remediation.Report
	calls  int
	dryRun bool
}

func (f *fakeFixer) FixMissingAccounts(ctx context.Context, dryRun bool) (remediation.Report, error) {
	f.calls++
	f.dryRun = dryRun
	return f.report, nil
}
