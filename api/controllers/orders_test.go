package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	ordersvc "github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type stubOrderService struct {
	orders     []models.Order
	order      *models.Order
	err        error
	lastReason string
	lastLimit  int
	lastOffset int
}

func (s *stubOrderService) Freeze(context.Context, ordersvc.FreezeInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) List(_ context.Context, _ uuid.UUID, limit, offset int) ([]models.Order, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	return s.orders, s.err
}

func (s *stubOrderService) Cancel(_ context.Context, _, _ uuid.UUID, reason string) (*models.Order, error) {
	s.lastReason = reason
	return s.order, s.err
}

func TestOrdersListDefaultsPagination(t *testing.T) {
	svc := &stubOrderService{orders: []models.Order{{ID: uuid.New(), Status: enums.OrderStatusPending}}}
	handler := OrdersList(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastLimit != 20 || svc.lastOffset != 0 {
		t.Fatalf("expected default pagination got limit=%d offset=%d", svc.lastLimit, svc.lastOffset)
	}

	var envelope struct {
		Data []orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one order got %d", len(envelope.Data))
	}
}

func TestOrdersListRejectsOversizedLimit(t *testing.T) {
	handler := OrdersList(&stubOrderService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?limit=9999", ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderDetailReturnsFrozenLines(t *testing.T) {
	order := &models.Order{
		ID:         uuid.New(),
		Status:     enums.OrderStatusPaymentCompleted,
		TotalCents: 125000,
		Lines: []models.OrderPriceHistory{
			{ProductID: uuid.New(), Quantity: 2, UnitPriceCents: 50000, SubtotalCents: 100000, FinalCents: 100000},
		},
	}
	handler := OrderDetail(&stubOrderService{order: order}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), "")
	req = withURLParam(req, "orderID", order.ID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Lines) != 1 || envelope.Data.Lines[0].Quantity != 2 {
		t.Fatalf("expected frozen line to survive serialization")
	}
}

func TestOrderDetailRejectsBadID(t *testing.T) {
	handler := OrderDetail(&stubOrderService{}, nil)

	req := authedRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", "")
	req = withURLParam(req, "orderID", "not-a-uuid")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderCancelWithoutBody(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusCancelled}
	svc := &stubOrderService{order: order}
	handler := OrderCancel(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", "")
	req = withURLParam(req, "orderID", order.ID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastReason != "" {
		t.Fatalf("expected empty reason got %q", svc.lastReason)
	}
}

func TestOrderCancelRecordsReason(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Status: enums.OrderStatusCancelled}
	svc := &stubOrderService{order: order}
	handler := OrderCancel(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", `{"reason":"ordered twice"}`)
	req = withURLParam(req, "orderID", order.ID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastReason != "ordered twice" {
		t.Fatalf("expected reason to pass through got %q", svc.lastReason)
	}
}

func TestOrderCancelConflictPropagates(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")}
	handler := OrderCancel(svc, nil)

	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "")
	req = withURLParam(req, "orderID", orderID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
