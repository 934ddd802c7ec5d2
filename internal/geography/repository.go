package geography

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

// Repository loads delivery destinations: user addresses and pickup agencies.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindAddress loads an address owned by the given user.
func (r *Repository) FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
	}
	return &address, nil
}

// FindActiveAgency loads an agency that is accepting pickups.
func (r *Repository) FindActiveAgency(ctx context.Context, agencyID uuid.UUID) (*models.Agency, error) {
	var agency models.Agency
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", agencyID, true).
		First(&agency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agency not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading agency")
	}
	return &agency, nil
}

// ListAddresses returns the user's saved addresses.
func (r *Repository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var addresses []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&addresses).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing addresses")
	}
	return addresses, nil
}

// ListActiveAgencies returns agencies currently accepting pickups.
func (r *Repository) ListActiveAgencies(ctx context.Context) ([]models.Agency, error) {
	var agencies []models.Agency
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&agencies).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing agencies")
	}
	return agencies, nil
}
