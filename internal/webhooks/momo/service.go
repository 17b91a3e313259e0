package momowebhook

import (
	"context"
	"fmt"
	"strconv"

	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/metrics"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

const outcomeSource = "webhook"

type settler interface {
	Settle(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) error
}

type signatureVerifier interface {
	VerifyIPNSignature(payload momo.IPNPayload) bool
}

type ServiceParams struct {
	Payments settler
	Verifier signatureVerifier
	Guard    *IdempotencyGuard
	Metrics  *metrics.ReconcileMetrics
	Logger   *logger.Logger
}

// Service turns gateway push notifications into intent resolutions. Every
// notification is acknowledged; the return value only tells the controller
// what to log, never what status to send.
type Service struct {
	payments settler
	verifier signatureVerifier
	guard    *IdempotencyGuard
	metrics  *metrics.ReconcileMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		verifier: params.Verifier,
		guard:    params.Guard,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleIPN processes one notification. The payer's token travels in OrderID.
// Non-terminal codes are ignored, unknown tokens are logged and dropped, and a
// stored outcome is never overwritten.
func (s *Service) HandleIPN(ctx context.Context, payload momo.IPNPayload) error {
	ctx = s.logg.WithToken(ctx, payload.OrderID)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"result_code": payload.ResultCode,
		"trans_id":    payload.TransID,
	})

	if !s.verifier.VerifyIPNSignature(payload) {
		s.logg.Warn(ctx, "momo notification signature mismatch, dropped")
		return nil
	}

	if momo.IsPending(payload.ResultCode) {
		s.logg.Info(ctx, "momo notification is non-terminal, ignored")
		return nil
	}

	seen, err := s.guard.CheckAndMark(ctx, payload.RequestID, payload.ResultCode)
	if err != nil {
		// Redis down must not drop the notification; Settle is idempotent.
		s.logg.Warn(ctx, "idempotency check unavailable, processing anyway")
	} else if seen {
		s.logg.Info(ctx, "duplicate momo notification, dropped")
		return nil
	}

	outcome := enums.IntentStatusFailed
	settlementRef := ""
	failureReason := fmt.Sprintf("momo result code %d: %s", payload.ResultCode, payload.Message)
	if momo.IsSuccess(payload.ResultCode) {
		outcome = enums.IntentStatusComplete
		settlementRef = strconv.FormatInt(payload.TransID, 10)
		failureReason = ""
	}

	settleErr := s.payments.Settle(ctx, payload.OrderID, outcome, settlementRef, failureReason)
	switch {
	case settleErr == nil:
		s.metrics.IncOutcome(outcomeSource, outcome.String())
		s.logg.Info(ctx, "momo notification settled")
		return nil
	case pkgerrors.IsCode(settleErr, pkgerrors.CodeNotFound):
		s.logg.Warn(ctx, "momo notification references unknown token, dropped")
		return nil
	case pkgerrors.IsCode(settleErr, pkgerrors.CodeStateConflict):
		s.logg.Error(ctx, "momo notification contradicts stored outcome", settleErr)
		return nil
	default:
		// Transient failure. Release the mark so a gateway retry is not
		// swallowed by the dedupe check.
		if err == nil && !seen {
			if relErr := s.guard.Release(ctx, payload.RequestID, payload.ResultCode); relErr != nil {
				s.logg.Warn(ctx, "failed to release idempotency mark")
			}
		}
		return settleErr
	}
}
