package gateway

import (
	"context"
	"errors"
	"slices"

	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type configSource interface {
	ListEnabled(ctx context.Context) ([]models.PaymentGatewayConfig, error)
}

// Router resolves a payment method type to the provider that should handle
// it, following the DB-seeded routing table.
type Router struct {
	configs  configSource
	registry *Registry
}

// NewRouter builds a router over the routing table and provider registry.
func NewRouter(configs configSource, registry *Registry) (*Router, error) {
	if configs == nil {
		return nil, errors.New("gateway config source is required")
	}
	if registry == nil {
		return nil, errors.New("gateway registry is required")
	}
	return &Router{configs: configs, registry: registry}, nil
}

// Route picks the enabled gateway supporting the method, currency, and
// amount. The designated default wins when several rows qualify.
func (r *Router) Route(ctx context.Context, method enums.PaymentMethodType, currency enums.Currency, amountCents int) (Gateway, *models.PaymentGatewayConfig, error) {
	configs, err := r.configs.ListEnabled(ctx)
	if err != nil {
		return nil, nil, err
	}

	var selected *models.PaymentGatewayConfig
	for i := range configs {
		cfg := &configs[i]
		if !supports(cfg, method, currency, amountCents) {
			continue
		}
		if selected == nil || (cfg.IsDefault && !selected.IsDefault) {
			selected = cfg
		}
	}
	if selected == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConfiguration, "no gateway configured for payment method").
			WithDetails(map[string]string{
				"method":   method.String(),
				"currency": currency.String(),
			})
	}

	instance, err := r.registry.Resolve(selected.Code)
	if err != nil {
		return nil, nil, err
	}
	return instance, selected, nil
}

func supports(cfg *models.PaymentGatewayConfig, method enums.PaymentMethodType, currency enums.Currency, amountCents int) bool {
	if !cfg.Enabled {
		return false
	}
	if !slices.Contains(cfg.SupportedMethods, method.String()) {
		return false
	}
	if !slices.Contains(cfg.SupportedCurrencies, currency.String()) {
		return false
	}
	if cfg.MinAmountCents != nil && amountCents < *cfg.MinAmountCents {
		return false
	}
	if cfg.MaxAmountCents != nil && amountCents > *cfg.MaxAmountCents {
		return false
	}
	return true
}

// GormConfigSource reads the routing table from Postgres.
type GormConfigSource struct {
	db *gorm.DB
}

// NewConfigSource builds a routing-table reader.
func NewConfigSource(db *gorm.DB) *GormConfigSource {
	return &GormConfigSource{db: db}
}

// ListEnabled returns the enabled routing rows.
func (s *GormConfigSource) ListEnabled(ctx context.Context) ([]models.PaymentGatewayConfig, error) {
	var configs []models.PaymentGatewayConfig
	err := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("code ASC").
		Find(&configs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading gateway configuration")
	}
	return configs, nil
}
