package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type stubPSEService struct {
	err      error
	payloads []string
}

func (s *stubPSEService) HandlePayload(_ context.Context, body []byte) error {
	s.payloads = append(s.payloads, string(body))
	return s.err
}

type stubVerifier struct {
	valid bool
}

func (s stubVerifier) VerifySignature([]byte, string) bool { return s.valid }

func pseRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/pse", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(PSESignatureHeader, signature)
	}
	return req
}

func TestPSEWebhookProcessesNotification(t *testing.T) {
	svc := &stubPSEService{}
	handler := PSEWebhook(svc, stubVerifier{valid: true}, newFakeGuard(), nil, nil)

	body := `{"transaction_id":"pse_tx_1","status":"approved"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, pseRequest(body, "sig"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.payloads) != 1 || svc.payloads[0] != body {
		t.Fatalf("expected raw body to reach the handler")
	}
}

func TestPSEWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubPSEService{}
	handler := PSEWebhook(svc, stubVerifier{valid: false}, newFakeGuard(), nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, pseRequest(`{"transaction_id":"pse_tx_1","status":"approved"}`, "sig"))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if len(svc.payloads) != 0 {
		t.Fatalf("unverified payload must not reach the handler")
	}
}

func TestPSEWebhookRejectsMissingSignature(t *testing.T) {
	handler := PSEWebhook(&stubPSEService{}, stubVerifier{valid: true}, newFakeGuard(), nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, pseRequest(`{"transaction_id":"pse_tx_1","status":"approved"}`, ""))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPSEWebhookRejectsMalformedBody(t *testing.T) {
	handler := PSEWebhook(&stubPSEService{}, stubVerifier{valid: true}, newFakeGuard(), nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, pseRequest(`{"status":"approved"}`, "sig"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPSEWebhookDistinguishesStatusChanges(t *testing.T) {
	svc := &stubPSEService{}
	guard := newFakeGuard()
	handler := PSEWebhook(svc, stubVerifier{valid: true}, guard, nil, nil)

	pending := `{"transaction_id":"pse_tx_1","status":"pending"}`
	approved := `{"transaction_id":"pse_tx_1","status":"approved"}`

	handler.ServeHTTP(httptest.NewRecorder(), pseRequest(pending, "sig"))
	handler.ServeHTTP(httptest.NewRecorder(), pseRequest(approved, "sig"))
	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, pseRequest(approved, "sig"))

	if len(svc.payloads) != 2 {
		t.Fatalf("expected two distinct notifications, got %d", len(svc.payloads))
	}
	if replay.Code != http.StatusOK {
		t.Fatalf("expected replay ack 200 got %d", replay.Code)
	}
}

func TestPSEWebhookReleasesMarkOnFailure(t *testing.T) {
	svc := &stubPSEService{err: pkgerrors.New(pkgerrors.CodeDependency, "reconcile failed")}
	guard := newFakeGuard()
	handler := PSEWebhook(svc, stubVerifier{valid: true}, guard, nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, pseRequest(`{"transaction_id":"pse_tx_2","status":"approved"}`, "sig"))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if guard.seen["pse_tx_2:approved"] {
		t.Fatalf("expected replay mark to be released for retry")
	}
}
