package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
)

// IntentRepository is the durable token-to-order mapping.
type IntentRepository interface {
	WithTx(tx *gorm.DB) IntentRepository

	Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	FindByToken(ctx context.Context, token string) (*models.PaymentIntent, error)
	FindLiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)

	// Resolve applies pending -> outcome as a single conditional write and
	// reports whether this call changed the row.
	Resolve(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason *string) (bool, error)
}

type intentRepository struct {
	db *gorm.DB
}

// NewIntentRepository builds an intent repository bound to the provided DB.
func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) WithTx(tx *gorm.DB) IntentRepository {
	if tx == nil {
		return r
	}
	return &intentRepository{db: tx}
}

func (r *intentRepository) Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *intentRepository) FindByToken(ctx context.Context, token string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) FindLiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.IntentStatusPending).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.IntentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// Resolve is the first-terminal-observation-wins write. The status guard means
// a duplicate or contradictory resolution affects zero rows and never
// overwrites the stored outcome.
func (r *intentRepository) Resolve(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason *string) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":      outcome,
		"resolved_at": &now,
	}
	if settlementRef != nil {
		updates["settlement_ref"] = settlementRef
	}
	if failureReason != nil {
		updates["failure_reason"] = failureReason
	}

	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("token = ? AND status = ?", token, enums.IntentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
