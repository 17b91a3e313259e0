package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	"github.com/craftcv/craftcv-backend/pkg/pagination"
)

// Repository is the durable surface of the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRef(ctx context.Context, ref OrderRef) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.Order, error)

	// FinalizePayment applies the pending -> complete transition as a single
	// conditional write. It reports whether this call changed the row; a false
	// return with no error means the guard did not match.
	FinalizePayment(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, transactionRef string) (bool, error)
}
