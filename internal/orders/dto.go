package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
)

// OrderRef is the (serviceCategory, ownerID, orderID) triple that identifies
// one order. All external reads and the redirect finalize path are scoped by
// the full triple.
type OrderRef struct {
	ServiceCategory enums.ServiceCategory
	OwnerID         uuid.UUID
	OrderID         uuid.UUID
}

// CreateOrderInput is what the ordering flow hands the ledger.
type CreateOrderInput struct {
	OwnerID         uuid.UUID
	ServiceCategory enums.ServiceCategory
	Price           decimal.Decimal
	Details         json.RawMessage
}

// OrderView is the API-facing projection of an order.
type OrderView struct {
	ID                uuid.UUID               `json:"id"`
	ServiceCategory   enums.ServiceCategory   `json:"service_category"`
	Price             decimal.Decimal         `json:"price"`
	Currency          string                  `json:"currency"`
	PaymentStatus     enums.PaymentStatus     `json:"payment_status"`
	PaymentMethod     enums.PaymentMethod     `json:"payment_method"`
	TransactionRef    *string                 `json:"transaction_ref,omitempty"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	Details           json.RawMessage         `json:"details,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

// OrderList is one page of a customer's orders.
type OrderList struct {
	Items      []OrderView `json:"items"`
	NextCursor *string     `json:"next_cursor,omitempty"`
}

// ResumeDetails describes a resume rewrite order.
type ResumeDetails struct {
	CurrentTitle    string `json:"current_title" validate:"required,max=120"`
	TargetRole      string `json:"target_role" validate:"required,max=120"`
	ExperienceYears int    `json:"experience_years" validate:"gte=0,lte=60"`
	Industry        string `json:"industry" validate:"max=120"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// CoverLetterDetails describes a cover letter order.
type CoverLetterDetails struct {
	TargetRole    string `json:"target_role" validate:"required,max=120"`
	Company       string `json:"company" validate:"required,max=120"`
	JobPostingURL string `json:"job_posting_url" validate:"omitempty,url,max=500"`
	Notes         string `json:"notes" validate:"max=2000"`
}

// LinkedInReviewDetails describes a profile review order.
type LinkedInReviewDetails struct {
	ProfileURL string `json:"profile_url" validate:"required,url,max=500"`
	TargetRole string `json:"target_role" validate:"max=120"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// MockInterviewDetails describes a mock interview order.
type MockInterviewDetails struct {
	TargetRole    string `json:"target_role" validate:"required,max=120"`
	PreferredSlot string `json:"preferred_slot" validate:"max=120"`
	Notes         string `json:"notes" validate:"max=2000"`
}

var detailsValidator = validator.New()

// validateDetails checks the service-specific payload against the typed
// variant for the category. The reconciliation core never looks inside; this
// is the only place the union is opened.
func validateDetails(category enums.ServiceCategory, raw json.RawMessage) error {
	if len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order details are required")
	}

	var dest any
	switch category {
	case enums.ServiceCategoryResume:
		dest = &ResumeDetails{}
	case enums.ServiceCategoryCoverLetter:
		dest = &CoverLetterDetails{}
	case enums.ServiceCategoryLinkedIn:
		dest = &LinkedInReviewDetails{}
	case enums.ServiceCategoryMockInterview:
		dest = &MockInterviewDetails{}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported service category %q", category))
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order details")
	}
	if err := detailsValidator.Struct(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order details")
	}
	return nil
}

func viewFromModel(order *models.Order) *OrderView {
	if order == nil {
		return nil
	}
	return &OrderView{
		ID:                order.ID,
		ServiceCategory:   order.ServiceCategory,
		Price:             order.Price,
		Currency:          order.Currency,
		PaymentStatus:     order.PaymentStatus,
		PaymentMethod:     order.PaymentMethod,
		TransactionRef:    order.TransactionRef,
		FulfillmentStatus: order.FulfillmentStatus,
		Details:           order.Details,
		CreatedAt:         order.CreatedAt,
	}
}
