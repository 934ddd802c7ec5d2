package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/api/responses"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type geographySource interface {
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	ListActiveAgencies(ctx context.Context) ([]models.Agency, error)
}

type addressResponse struct {
	ID      uuid.UUID `json:"id"`
	Line1   string    `json:"line1"`
	Line2   *string   `json:"line2,omitempty"`
	City    string    `json:"city"`
	Region  string    `json:"region"`
	Country string    `json:"country"`
}

type agencyResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	City string    `json:"city"`
}

// ListAddresses returns the caller's saved delivery addresses.
func ListAddresses(geo geographySource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if geo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "geography repository unavailable"))
			return
		}

		userID, err := authenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addresses, err := geo.ListAddresses(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]addressResponse, len(addresses))
		for i, address := range addresses {
			items[i] = addressResponse{
				ID:      address.ID,
				Line1:   address.Line1,
				Line2:   address.Line2,
				City:    address.City,
				Region:  address.Region,
				Country: address.Country,
			}
		}
		responses.WriteSuccess(w, items)
	}
}

// ListAgencies returns the pickup points currently accepting orders.
func ListAgencies(geo geographySource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if geo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "geography repository unavailable"))
			return
		}

		agencies, err := geo.ListActiveAgencies(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]agencyResponse, len(agencies))
		for i, agency := range agencies {
			items[i] = agencyResponse{ID: agency.ID, Name: agency.Name, City: agency.City}
		}
		responses.WriteSuccess(w, items)
	}
}
