package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/pkg/db"
	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

const liveIntentConstraint = "uq_payment_intents_live_order"

// PushProvider is the slice of the wallet gateway the initiator needs.
type PushProvider interface {
	CreatePayment(ctx context.Context, params momo.CreatePaymentParams) (*momo.CreatePaymentResult, error)
}

// Service owns the payment attempt lifecycle: opening push intents against the
// gateway, settling them exactly once, and confirming redirect captures.
type Service interface {
	InitiatePush(ctx context.Context, input InitiatePushInput) (*PushIntentView, error)
	IntentStatus(ctx context.Context, token string, ownerID uuid.UUID) (*StatusView, error)

	// Settle records a terminal provider outcome for the intent and, on
	// success, finalizes the order. Safe to call from every reconciliation
	// path; repeats with the same outcome are no-ops.
	Settle(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) error

	ConfirmRedirectCapture(ctx context.Context, input ConfirmRedirectInput) error
}

// ServiceParams carries the initiator's dependencies.
type ServiceParams struct {
	Intents  IntentRepository
	Orders   orders.Repository
	Ledger   orders.Service
	Provider PushProvider
	Logger   *logger.Logger
}

type service struct {
	intents  IntentRepository
	orders   orders.Repository
	ledger   orders.Service
	provider PushProvider
	logg     *logger.Logger
}

// NewService builds the payment service and validates its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Intents == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("push provider required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		intents:  params.Intents,
		orders:   params.Orders,
		ledger:   params.Ledger,
		provider: params.Provider,
		logg:     params.Logger,
	}, nil
}

// InitiatePush calls the gateway first and persists the intent second. The
// gateway call is the irreversible step, so a persist failure after a granted
// authorization is surfaced as an orphaned payment and paged on.
func (s *service) InitiatePush(ctx context.Context, input InitiatePushInput) (*PushIntentView, error) {
	order, err := s.orders.FindByRef(ctx, input.Ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.PaymentStatusComplete {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	if _, err := s.intents.FindLiveByOrder(ctx, order.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment attempt is already in progress for this order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check live intent")
	}

	token := uuid.NewString()
	orderInfo := input.OrderInfo
	if orderInfo == "" {
		orderInfo = fmt.Sprintf("CraftCV %s order", order.ServiceCategory)
	}

	ctx = s.logg.WithToken(ctx, token)

	res, err := s.provider.CreatePayment(ctx, momo.CreatePaymentParams{
		Token:     token,
		Amount:    order.Price.IntPart(),
		OrderInfo: orderInfo,
		ExtraData: input.ExtraData,
	})
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		Token:   token,
		OrderID: order.ID,
		Status:  enums.IntentStatusPending,
		Amount:  order.Price,
	}
	created, err := s.intents.Create(ctx, intent)
	if err != nil {
		if db.IsUniqueViolation(err, liveIntentConstraint) {
			// A concurrent initiation won the partial unique index race. The
			// gateway holds an authorization nothing references.
			s.logg.Warn(s.logg.WithField(ctx, "order_id", order.ID), "lost intent race after gateway authorization")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payment attempt is already in progress for this order")
		}
		alertCtx := s.logg.WithFields(ctx, map[string]any{
			"operator_alert": true,
			"order_id":       order.ID,
		})
		s.logg.Error(alertCtx, "payment authorized at gateway but intent not persisted", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrphanedPayment, err, "persist payment intent")
	}

	s.logg.Info(ctx, "push payment initiated")
	return &PushIntentView{
		Token:     created.Token,
		OrderID:   created.OrderID,
		Amount:    created.Amount,
		Status:    created.Status.String(),
		PayURL:    res.PayURL,
		Deeplink:  res.Deeplink,
		QRCodeURL: res.QRCodeURL,
		CreatedAt: created.CreatedAt,
	}, nil
}

// IntentStatus returns the attempt's current state. When ownerID is set the
// lookup is scoped to that customer's orders and a foreign token reads as not
// found.
func (s *service) IntentStatus(ctx context.Context, token string, ownerID uuid.UUID) (*StatusView, error) {
	intent, err := s.loadIntent(ctx, token)
	if err != nil {
		return nil, err
	}

	if ownerID != uuid.Nil {
		order, err := s.orders.FindByID(ctx, intent.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for intent")
		}
		if order.OwnerID != ownerID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
	}

	return statusViewFromModel(intent), nil
}

// Settle is the single convergence point for the callback handler, the poller,
// and the sweeper. The intent transition is conditional, so whichever path
// reports the outcome first wins and everyone after observes a no-op.
func (s *service) Settle(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) error {
	if !outcome.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("outcome %q is not terminal", outcome))
	}
	if outcome == enums.IntentStatusComplete && settlementRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "settlement ref is required for a complete outcome")
	}

	ctx = s.logg.WithToken(ctx, token)

	intent, err := s.resolveIntent(ctx, token, outcome, settlementRef, failureReason)
	if err != nil {
		return err
	}

	if outcome == enums.IntentStatusComplete {
		// Runs even when the resolve was a no-op so a crash between the two
		// writes heals on the next settle attempt.
		return s.ledger.FinalizePayment(ctx, intent.OrderID, enums.PaymentMethodMoMo, settlementRef)
	}
	return nil
}

// ConfirmRedirectCapture finalizes an order from the redirect provider's
// signed return. A capture that matches no order means money moved with
// nothing to attach it to, which is an operator problem, not a payer one.
func (s *service) ConfirmRedirectCapture(ctx context.Context, input ConfirmRedirectInput) error {
	if input.TransactionNo == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction number is required")
	}

	err := s.ledger.FinalizeByRef(ctx, input.Ref, enums.PaymentMethodVNPay, input.TransactionNo)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		alertCtx := s.logg.WithFields(ctx, map[string]any{
			"operator_alert": true,
			"transaction_no": input.TransactionNo,
			"order_id":       input.Ref.OrderID,
		})
		s.logg.Error(alertCtx, "captured payment does not match any order", err)
	}
	return err
}

func (s *service) loadIntent(ctx context.Context, token string) (*models.PaymentIntent, error) {
	intent, err := s.intents.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	return intent, nil
}

// resolveIntent applies the conditional transition and classifies a guard
// miss: same stored outcome is a duplicate report, a different one is a
// contradiction and never overwrites what is already recorded.
func (s *service) resolveIntent(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) (*models.PaymentIntent, error) {
	intent, err := s.loadIntent(ctx, token)
	if err != nil {
		return nil, err
	}

	if intent.Status.IsTerminal() {
		if intent.Status == outcome {
			return intent, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "intent already resolved with a different outcome").
			WithDetails(map[string]any{"stored": intent.Status, "reported": outcome})
	}

	var refPtr, reasonPtr *string
	if settlementRef != "" {
		refPtr = &settlementRef
	}
	if failureReason != "" {
		reasonPtr = &failureReason
	}

	applied, err := s.intents.Resolve(ctx, token, outcome, refPtr, reasonPtr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve intent")
	}
	if applied {
		s.logg.Info(s.logg.WithField(ctx, "outcome", outcome), "payment intent resolved")
		intent.Status = outcome
		intent.SettlementRef = refPtr
		intent.FailureReason = reasonPtr
		return intent, nil
	}

	// Lost the race to another reconciliation path. Reload and compare.
	current, err := s.loadIntent(ctx, token)
	if err != nil {
		return nil, err
	}
	if current.Status == outcome {
		return current, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "intent already resolved with a different outcome").
		WithDetails(map[string]any{"stored": current.Status, "reported": outcome})
}
