package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// Promotion is a discount attached to a product. A sporadic promotion carries
// both window dates; a permanent one carries neither.
type Promotion struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string               `gorm:"column:name;not null"`
	State     enums.PromotionState `gorm:"column:state;not null;default:'draft'"`
	Type      enums.PromotionType  `gorm:"column:type;not null"`
	// Value is a percentage (0-100) for percentage promotions and cents for
	// fixed promotions.
	Value     int        `gorm:"column:value;not null"`
	StartDate *time.Time `gorm:"column:start_date"`
	EndDate   *time.Time `gorm:"column:end_date"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSporadic reports whether the promotion is valid only inside a time window.
func (p Promotion) IsSporadic() bool {
	return p.StartDate != nil && p.EndDate != nil
}

// IsPermanent reports whether the promotion is always valid while active.
func (p Promotion) IsPermanent() bool {
	return p.StartDate == nil && p.EndDate == nil
}
