package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type methodLoader interface {
	FindActiveMethod(ctx context.Context, methodID uuid.UUID) (*models.PaymentMethod, error)
	ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

type gormMethodLoader struct {
	db *gorm.DB
}

// NewMethodLoader exposes payment method lookups used during checkout
// validation.
func NewMethodLoader(db *gorm.DB) methodLoader {
	return &gormMethodLoader{db: db}
}

func (l *gormMethodLoader) FindActiveMethod(ctx context.Context, methodID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := l.db.WithContext(ctx).
		Where("id = ? AND active = ?", methodID, true).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payment method")
	}
	return &method, nil
}

func (l *gormMethodLoader) ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := l.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&methods).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payment methods")
	}
	return methods, nil
}
