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
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	"github.com/craftcv/craftcv-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  service_category TEXT NOT NULL,
  price TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'VND',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'none',
  transaction_ref TEXT,
  fulfillment_status TEXT NOT NULL DEFAULT 'pending',
  details TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, ownerID uuid.UUID, category enums.ServiceCategory, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		ServiceCategory:   category,
		Price:             decimal.NewFromInt(500000),
		Currency:          "VND",
		PaymentStatus:     enums.PaymentStatusPending,
		PaymentMethod:     enums.PaymentMethodNone,
		FulfillmentStatus: enums.FulfillmentStatusPending,
		Details:           json.RawMessage(`{"target_role":"Backend Engineer"}`),
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestFindByRefScopesByTriple(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	order := newOrder(t, db, owner, enums.ServiceCategoryResume, time.Now().UTC())

	found, err := repo.FindByRef(ctx, OrderRef{
		ServiceCategory: enums.ServiceCategoryResume,
		OwnerID:         owner,
		OrderID:         order.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	// Same order id with a different owner must not resolve.
	_, err = repo.FindByRef(ctx, OrderRef{
		ServiceCategory: enums.ServiceCategoryResume,
		OwnerID:         uuid.New(),
		OrderID:         order.ID,
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Same order id under the wrong category must not resolve either.
	_, err = repo.FindByRef(ctx, OrderRef{
		ServiceCategory: enums.ServiceCategoryCoverLetter,
		OwnerID:         owner,
		OrderID:         order.ID,
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByOwnerPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		newOrder(t, db, owner, enums.ServiceCategoryResume, base.Add(time.Duration(i)*time.Minute))
	}
	newOrder(t, db, uuid.New(), enums.ServiceCategoryResume, base)

	rows, err := repo.ListByOwner(ctx, owner, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// Buffer row included so the service can detect the next page.
	require.Len(t, rows, 3)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: rows[1].CreatedAt, ID: rows[1].ID})
	rest, err := repo.ListByOwner(ctx, owner, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestFinalizePaymentFirstWriterWins(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newOrder(t, db, uuid.New(), enums.ServiceCategoryResume, time.Now().UTC())

	applied, err := repo.FinalizePayment(ctx, order.ID, enums.PaymentMethodMoMo, "momo-tx-1")
	require.NoError(t, err)
	assert.True(t, applied)

	// Second writer misses the guard and must not overwrite the ref.
	applied, err = repo.FinalizePayment(ctx, order.ID, enums.PaymentMethodVNPay, "vnpay-tx-9")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusComplete, stored.PaymentStatus)
	assert.Equal(t, enums.PaymentMethodMoMo, stored.PaymentMethod)
	require.NotNil(t, stored.TransactionRef)
	assert.Equal(t, "momo-tx-1", *stored.TransactionRef)
}

func TestFinalizePaymentUnknownOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	applied, err := repo.FinalizePayment(context.Background(), uuid.New(), enums.PaymentMethodMoMo, "momo-tx-1")
	require.NoError(t, err)
	assert.False(t, applied)
}
