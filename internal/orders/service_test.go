package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestCreateOrderValidatesDetailsPerCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		OwnerID:         owner,
		ServiceCategory: enums.ServiceCategoryResume,
		Price:           decimal.NewFromInt(500000),
		Details:         json.RawMessage(`{"target_role":"Backend Engineer"}`),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "resume details need current_title")

	view, err := svc.CreateOrder(ctx, CreateOrderInput{
		OwnerID:         owner,
		ServiceCategory: enums.ServiceCategoryResume,
		Price:           decimal.NewFromInt(500000),
		Details:         json.RawMessage(`{"current_title":"Developer","target_role":"Backend Engineer","experience_years":4}`),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, view.PaymentStatus)
	assert.Equal(t, enums.PaymentMethodNone, view.PaymentMethod)
	assert.Equal(t, "VND", view.Currency)
}

func TestCreateOrderRejectsNonPositivePrice(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		OwnerID:         uuid.New(),
		ServiceCategory: enums.ServiceCategoryCoverLetter,
		Price:           decimal.Zero,
		Details:         json.RawMessage(`{"target_role":"PM","company":"Acme"}`),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFinalizePaymentIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	db := repo.(*repository).db
	order := newOrder(t, db, uuid.New(), enums.ServiceCategoryResume, time.Now().UTC())

	require.NoError(t, svc.FinalizePayment(ctx, order.ID, enums.PaymentMethodMoMo, "momo-tx-1"))

	// Duplicate report of the same settlement is a success no-op.
	require.NoError(t, svc.FinalizePayment(ctx, order.ID, enums.PaymentMethodMoMo, "momo-tx-1"))

	// A different path reporting later is also absorbed; the first write won.
	require.NoError(t, svc.FinalizePayment(ctx, order.ID, enums.PaymentMethodVNPay, "vnpay-tx-2"))

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TransactionRef)
	assert.Equal(t, "momo-tx-1", *stored.TransactionRef)
}

func TestFinalizePaymentUnknownOrderIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.FinalizePayment(context.Background(), uuid.New(), enums.PaymentMethodMoMo, "momo-tx-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFinalizeByRefResolvesTriple(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	db := repo.(*repository).db
	owner := uuid.New()
	order := newOrder(t, db, owner, enums.ServiceCategoryMockInterview, time.Now().UTC())

	err := svc.FinalizeByRef(ctx, OrderRef{
		ServiceCategory: enums.ServiceCategoryMockInterview,
		OwnerID:         owner,
		OrderID:         order.ID,
	}, enums.PaymentMethodVNPay, "vnpay-tx-1")
	require.NoError(t, err)

	// Wrong owner cannot finalize through the reference path.
	err = svc.FinalizeByRef(ctx, OrderRef{
		ServiceCategory: enums.ServiceCategoryMockInterview,
		OwnerID:         uuid.New(),
		OrderID:         order.ID,
	}, enums.PaymentMethodVNPay, "vnpay-tx-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
