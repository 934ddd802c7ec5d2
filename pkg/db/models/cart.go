package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// Cart is the mutable pre-order collection of product lines. It is owned by an
// authenticated user or by a guest browser session, never both required.
// Partial unique indexes keep at most one active cart per user and one per
// guest session.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index:ux_carts_active_user,unique,where:status = 'active' AND user_id IS NOT NULL"`
	SessionID *string          `gorm:"column:session_id;index:ux_carts_active_session,unique,where:status = 'active' AND user_id IS NULL"`
	Status    enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	ExpiresAt time.Time        `gorm:"column:expires_at;not null"`
	Lines     []CartLine       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
