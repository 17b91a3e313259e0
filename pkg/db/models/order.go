package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftcv/craftcv-backend/pkg/enums"
)

// Order is one purchased service instance. Identity is the
// (service_category, owner_id, id) triple; payment_status only ever moves
// pending -> complete and transaction_ref is written once by the first
// effective finalize.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID               `gorm:"column:owner_id;type:uuid;not null;index"`
	ServiceCategory   enums.ServiceCategory   `gorm:"column:service_category;type:service_category;not null"`
	Price             decimal.Decimal         `gorm:"column:price;type:numeric(14,2);not null"`
	Currency          string                  `gorm:"column:currency;not null;default:'VND'"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null;default:'none'"`
	TransactionRef    *string                 `gorm:"column:transaction_ref"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:fulfillment_status;not null;default:'pending'"`
	Details           json.RawMessage         `gorm:"column:details;type:jsonb"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
