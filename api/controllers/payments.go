package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	"github.com/dfrestrepo/mercaflow-backend/api/validators"
	paymentsvc "github.com/dfrestrepo/mercaflow-backend/internal/payments"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type paymentResponse struct {
	ID            uuid.UUID               `json:"id"`
	OrderID       uuid.UUID               `json:"order_id"`
	GatewayCode   string                  `json:"gateway_code"`
	MethodType    enums.PaymentMethodType `json:"method_type"`
	State         enums.PaymentState      `json:"state"`
	AmountCents   int                     `json:"amount_cents"`
	Currency      enums.Currency          `json:"currency"`
	TransactionID *string                 `json:"transaction_id,omitempty"`
	FailureReason *string                 `json:"failure_reason,omitempty"`
	RedirectURL   string                  `json:"redirect_url,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func newPaymentResponse(payment *models.Payment, redirectURL string) paymentResponse {
	return paymentResponse{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		GatewayCode:   payment.GatewayCode,
		MethodType:    payment.MethodType,
		State:         payment.State,
		AmountCents:   payment.AmountCents,
		Currency:      payment.Currency,
		TransactionID: payment.TransactionID,
		FailureReason: payment.FailureReason,
		RedirectURL:   redirectURL,
		CreatedAt:     payment.CreatedAt,
		UpdatedAt:     payment.UpdatedAt,
	}
}

type processPaymentRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	CardToken   string    `json:"card_token"`
	BankCode    string    `json:"bank_code"`
	Description string    `json:"description" validate:"max=500"`
}

// ProcessPayment runs one payment attempt for an order. Pending results for
// bank-flow methods carry the redirect the shopper must follow.
func ProcessPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload processPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Process(r.Context(), paymentsvc.ProcessInput{
			OrderID:     payload.OrderID,
			UserID:      userID,
			CardToken:   payload.CardToken,
			BankCode:    payload.BankCode,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(result.Payment, result.RedirectURL))
	}
}

// PaymentStatus looks a payment up by its gateway transaction id.
func PaymentStatus(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		payment, err := svc.GetStatus(r.Context(), chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment, ""))
	}
}

// OrderPayments lists every attempt made against one of the caller's orders.
func OrderPayments(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		payments, err := svc.ListForOrder(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, len(payments))
		for i := range payments {
			items[i] = newPaymentResponse(&payments[i], "")
		}
		responses.WriteSuccess(w, items)
	}
}

type gatewayCatalog interface {
	Codes() []string
	Resolve(code string) (gateway.Gateway, error)
}

// PaymentGateways describes the registered providers. Providers whose
// construction fails are skipped rather than failing the listing.
func PaymentGateways(registry gatewayCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry unavailable"))
			return
		}

		infos := make([]gateway.Info, 0, len(registry.Codes()))
		for _, code := range registry.Codes() {
			instance, err := registry.Resolve(code)
			if err != nil {
				if logg != nil {
					logg.Error(r.Context(), "resolve gateway for listing", err)
				}
				continue
			}
			infos = append(infos, instance.Info())
		}
		responses.WriteSuccess(w, infos)
	}
}

// PSEBanks lists the banks available for PSE payments.
func PSEBanks(registry gatewayCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway registry unavailable"))
			return
		}

		instance, err := registry.Resolve("pse")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		banks, err := instance.GetBanks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, banks)
	}
}
