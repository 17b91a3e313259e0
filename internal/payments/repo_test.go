package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/pkg/db"
	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
)

func setupIntentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	intentsTable := `
CREATE TABLE IF NOT EXISTS payment_intents (
  token TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount TEXT NOT NULL,
  settlement_ref TEXT,
  failure_reason TEXT,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	liveIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_payment_intents_live_order
ON payment_intents (order_id) WHERE status = 'pending';`
	require.NoError(t, conn.Exec(intentsTable).Error)
	require.NoError(t, conn.Exec(liveIndex).Error)
	return conn
}

func newIntent(t *testing.T, conn *gorm.DB, orderID uuid.UUID, status enums.IntentStatus, created time.Time) *models.PaymentIntent {
	t.Helper()

	intent := &models.PaymentIntent{
		Token:     uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		Amount:    decimal.NewFromInt(500000),
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, conn.Create(intent).Error)
	return intent
}

func TestCreateEnforcesOneLiveIntentPerOrder(t *testing.T) {
	conn := setupIntentsTestDB(t)
	repo := NewIntentRepository(conn)
	ctx := context.Background()

	orderID := uuid.New()
	_, err := repo.Create(ctx, &models.PaymentIntent{
		Token:   uuid.NewString(),
		OrderID: orderID,
		Status:  enums.IntentStatusPending,
		Amount:  decimal.NewFromInt(500000),
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.PaymentIntent{
		Token:   uuid.NewString(),
		OrderID: orderID,
		Status:  enums.IntentStatusPending,
		Amount:  decimal.NewFromInt(500000),
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "uq_payment_intents_live_order"))
}

func TestCreateAllowsNewIntentAfterResolution(t *testing.T) {
	conn := setupIntentsTestDB(t)
	repo := NewIntentRepository(conn)
	ctx := context.Background()

	orderID := uuid.New()
	first := newIntent(t, conn, orderID, enums.IntentStatusPending, time.Now().UTC())

	applied, err := repo.Resolve(ctx, first.Token, enums.IntentStatusFailed, nil, strPtr("payer cancelled"))
	require.NoError(t, err)
	require.True(t, applied)

	// The partial index only covers pending rows, so a fresh attempt opens.
	_, err = repo.Create(ctx, &models.PaymentIntent{
		Token:   uuid.NewString(),
		OrderID: orderID,
		Status:  enums.IntentStatusPending,
		Amount:  decimal.NewFromInt(500000),
	})
	require.NoError(t, err)
}

func TestResolveIsFirstWriterWins(t *testing.T) {
	conn := setupIntentsTestDB(t)
	repo := NewIntentRepository(conn)
	ctx := context.Background()

	intent := newIntent(t, conn, uuid.New(), enums.IntentStatusPending, time.Now().UTC())

	applied, err := repo.Resolve(ctx, intent.Token, enums.IntentStatusComplete, strPtr("12345"), nil)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.Resolve(ctx, intent.Token, enums.IntentStatusFailed, nil, strPtr("late failure report"))
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.FindByToken(ctx, intent.Token)
	require.NoError(t, err)
	assert.Equal(t, enums.IntentStatusComplete, stored.Status)
	require.NotNil(t, stored.SettlementRef)
	assert.Equal(t, "12345", *stored.SettlementRef)
	assert.Nil(t, stored.FailureReason)
	require.NotNil(t, stored.ResolvedAt)
}

func TestListStalePendingRespectsCutoffAndStatus(t *testing.T) {
	conn := setupIntentsTestDB(t)
	repo := NewIntentRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	old := newIntent(t, conn, uuid.New(), enums.IntentStatusPending, now.Add(-10*time.Minute))
	newIntent(t, conn, uuid.New(), enums.IntentStatusPending, now.Add(-30*time.Second))
	newIntent(t, conn, uuid.New(), enums.IntentStatusComplete, now.Add(-10*time.Minute))

	stale, err := repo.ListStalePending(ctx, now.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.Token, stale[0].Token)
}

func TestFindLiveByOrder(t *testing.T) {
	conn := setupIntentsTestDB(t)
	repo := NewIntentRepository(conn)
	ctx := context.Background()

	orderID := uuid.New()
	newIntent(t, conn, orderID, enums.IntentStatusFailed, time.Now().UTC())

	_, err := repo.FindLiveByOrder(ctx, orderID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	live := newIntent(t, conn, orderID, enums.IntentStatusPending, time.Now().UTC())
	found, err := repo.FindLiveByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, live.Token, found.Token)
}

func strPtr(s string) *string {
	return &s
}
