package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	"github.com/dfrestrepo/mercaflow-backend/api/validators"
	ordersvc "github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/types"
)

type orderLineResponse struct {
	ProductID      uuid.UUID  `json:"product_id"`
	PromotionID    *uuid.UUID `json:"promotion_id,omitempty"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	SubtotalCents  int        `json:"subtotal_cents"`
	DiscountCents  int        `json:"discount_cents"`
	FinalCents     int        `json:"final_cents"`
}

type orderResponse struct {
	ID              uuid.UUID              `json:"id"`
	Status          enums.OrderStatus      `json:"status"`
	Currency        enums.Currency         `json:"currency"`
	SubtotalCents   int                    `json:"subtotal_cents"`
	DiscountCents   int                    `json:"discount_cents"`
	ShippingCents   int                    `json:"shipping_cents"`
	TaxCents        int                    `json:"tax_cents"`
	TotalCents      int                    `json:"total_cents"`
	DeliveryType    enums.DeliveryType     `json:"delivery_type"`
	DeliveryAddress *types.AddressSnapshot `json:"delivery_address,omitempty"`
	PickupAgencyID  *uuid.UUID             `json:"pickup_agency_id,omitempty"`
	PaymentMethodID uuid.UUID              `json:"payment_method_id"`
	LastPaymentID   *uuid.UUID             `json:"last_payment_id,omitempty"`
	Lines           []orderLineResponse    `json:"lines"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	lines := make([]orderLineResponse, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = orderLineResponse{
			ProductID:      line.ProductID,
			PromotionID:    line.PromotionID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  line.SubtotalCents,
			DiscountCents:  line.DiscountCents,
			FinalCents:     line.FinalCents,
		}
	}
	return orderResponse{
		ID:              order.ID,
		Status:          order.Status,
		Currency:        order.Currency,
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		ShippingCents:   order.ShippingCents,
		TaxCents:        order.TaxCents,
		TotalCents:      order.TotalCents,
		DeliveryType:    order.DeliveryType,
		DeliveryAddress: order.DeliveryAddress,
		PickupAgencyID:  order.PickupAgencyID,
		PaymentMethodID: order.PaymentMethodID,
		LastPaymentID:   order.LastPaymentID,
		Lines:           lines,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// OrdersList returns the caller's orders, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.List(r.Context(), userID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(orders))
		for i := range orders {
			items[i] = newOrderResponse(&orders[i])
		}
		responses.WriteSuccess(w, items)
	}
}

// OrderDetail returns one of the caller's orders with its frozen lines.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		order, err := svc.Get(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// OrderCancel cancels a not-yet-paid order. The body is optional; a reason is
// recorded when provided.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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

		var payload cancelOrderRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), orderID, userID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
