package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/pagination"
)

// Service exposes the order ledger operations. FinalizePayment is the
// load-bearing contract: callback handling, polling, and redirect capture all
// funnel into it, and only the first effective call changes the record.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	GetOrder(ctx context.Context, ref OrderRef) (*OrderView, error)
	ListOrders(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*OrderList, error)
	FinalizePayment(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, transactionRef string) error
	FinalizeByRef(ctx context.Context, ref OrderRef, method enums.PaymentMethod, transactionRef string) error
}

type service struct {
	repo Repository
}

// NewService builds the order ledger service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !input.ServiceCategory.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid service category %q", input.ServiceCategory))
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if err := validateDetails(input.ServiceCategory, input.Details); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		OwnerID:           input.OwnerID,
		ServiceCategory:   input.ServiceCategory,
		Price:             input.Price,
		Currency:          "VND",
		PaymentStatus:     enums.PaymentStatusPending,
		PaymentMethod:     enums.PaymentMethodNone,
		FulfillmentStatus: enums.FulfillmentStatusPending,
		Details:           input.Details,
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return viewFromModel(created), nil
}

func (s *service) GetOrder(ctx context.Context, ref OrderRef) (*OrderView, error) {
	order, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return viewFromModel(order), nil
}

func (s *service) ListOrders(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	list := &OrderList{Items: make([]OrderView, 0, len(rows))}
	for i := range rows {
		if i == limit {
			break
		}
		list.Items = append(list.Items, *viewFromModel(&rows[i]))
	}
	if len(rows) > limit {
		last := rows[limit-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		list.NextCursor = &cursor
	}
	return list, nil
}

// FinalizePayment marks the order paid. The repository applies the transition
// as a conditional write; a miss on the guard is only an error when the order
// does not exist or is somehow in an unknown state.
func (s *service) FinalizePayment(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, transactionRef string) error {
	if !method.IsValid() || method == enums.PaymentMethodNone {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	if transactionRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction ref is required")
	}

	applied, err := s.repo.FinalizePayment(ctx, orderID, method, transactionRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize payment")
	}
	if applied {
		return nil
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order after finalize miss")
	}
	if order.PaymentStatus == enums.PaymentStatusComplete {
		// Already finalized by the other reconciliation path.
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment not finalizable")
}

// FinalizeByRef resolves the triple and finalizes. Used by the redirect
// provider, which has no intent row to resolve an order id from.
func (s *service) FinalizeByRef(ctx context.Context, ref OrderRef, method enums.PaymentMethod, transactionRef string) error {
	order, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.FinalizePayment(ctx, order.ID, method, transactionRef)
}
