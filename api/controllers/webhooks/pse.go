package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/metrics"
)

// PSESignatureHeader carries the aggregator's HMAC over the raw body.
const PSESignatureHeader = "X-PSE-Signature"

type PSEWebhookService interface {
	HandlePayload(ctx context.Context, body []byte) error
}

type pseVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// PSEWebhook verifies and applies PSE aggregator notifications. The replay
// key includes the reported status so a later state change for the same
// transaction is not swallowed as a duplicate.
func PSEWebhook(svc PSEWebhookService, verifier pseVerifier, guard replayGuard, payMetrics *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pse webhook dependencies unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(PSESignatureHeader)
		if signature == "" || !verifier.VerifySignature(body, signature) {
			payMetrics.IncWebhookEvent("pse", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid pse signature"))
			return
		}

		var envelope struct {
			TransactionID string `json:"transaction_id"`
			Status        string `json:"status"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.TransactionID == "" {
			payMetrics.IncWebhookEvent("pse", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "malformed pse notification"))
			return
		}

		replayKey := envelope.TransactionID + ":" + envelope.Status
		seen, err := guard.CheckAndMark(ctx, replayKey)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replay guard"))
			return
		}
		if seen {
			payMetrics.IncWebhookEvent("pse", "replay")
			responses.WriteSuccess(w, map[string]string{"status": "already_processed"})
			return
		}

		if err := svc.HandlePayload(ctx, body); err != nil {
			_ = guard.Release(ctx, replayKey)
			payMetrics.IncWebhookEvent("pse", "failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payMetrics.IncWebhookEvent("pse", "processed")
		if logg != nil {
			logg.Info(logg.WithField(ctx, "transaction_id", envelope.TransactionID), "pse notification processed")
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}
