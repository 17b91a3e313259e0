package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftcv/craftcv-backend/pkg/enums"
)

// PaymentIntent links a provider transaction token to the order it pays for.
// The token is the primary key; a partial unique index on
// (order_id) WHERE status = 'pending' enforces at most one live intent per
// order. Rows are never deleted, they stay behind as the audit trail.
type PaymentIntent struct {
	Token         string             `gorm:"column:token;primaryKey"`
	OrderID       uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Status        enums.IntentStatus `gorm:"column:status;type:intent_status;not null;default:'pending'"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null"`
	SettlementRef *string            `gorm:"column:settlement_ref"`
	FailureReason *string            `gorm:"column:failure_reason"`
	ResolvedAt    *time.Time         `gorm:"column:resolved_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
