package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
)

// InitiatePushInput starts a wallet push attempt against one order.
type InitiatePushInput struct {
	Ref       orders.OrderRef
	OrderInfo string
	ExtraData string
}

// PushIntentView is returned to the client after the gateway accepts the
// authorization. PayURL and Deeplink are where the payer goes next.
type PushIntentView struct {
	Token     string          `json:"token"`
	OrderID   uuid.UUID       `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	PayURL    string          `json:"pay_url"`
	Deeplink  string          `json:"deeplink,omitempty"`
	QRCodeURL string          `json:"qr_code_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// StatusView is the client-facing state of one payment attempt.
type StatusView struct {
	Token         string             `json:"token"`
	OrderID       uuid.UUID          `json:"order_id"`
	Status        enums.IntentStatus `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	SettlementRef *string            `json:"settlement_ref,omitempty"`
	FailureReason *string            `json:"failure_reason,omitempty"`
	ResolvedAt    *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ConfirmRedirectInput is the client-captured confirmation from the redirect
// provider's signed return, already signature-verified by the controller.
type ConfirmRedirectInput struct {
	Ref           orders.OrderRef
	TransactionNo string
}

func statusViewFromModel(intent *models.PaymentIntent) *StatusView {
	if intent == nil {
		return nil
	}
	return &StatusView{
		Token:         intent.Token,
		OrderID:       intent.OrderID,
		Status:        intent.Status,
		Amount:        intent.Amount,
		SettlementRef: intent.SettlementRef,
		FailureReason: intent.FailureReason,
		ResolvedAt:    intent.ResolvedAt,
		CreatedAt:     intent.CreatedAt,
	}
}
