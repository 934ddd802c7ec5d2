package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type gormMethodSource struct {
	db *gorm.DB
}

// NewMethodSource reads payment method rows for attempt dispatch. Unlike the
// checkout loader it also returns disabled methods; the order already
// committed to one.
func NewMethodSource(db *gorm.DB) methodSource {
	return &gormMethodSource{db: db}
}

func (s *gormMethodSource) FindMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.WithContext(ctx).First(&method, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment method")
	}
	return &method, nil
}
