package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/metrics"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

// Outcome is what a bounded reconciliation run reports back.
type Outcome string

const (
	OutcomeComplete      Outcome = "complete"
	OutcomeFailed        Outcome = "failed"
	OutcomeIndeterminate Outcome = "indeterminate"
)

const (
	defaultInterval = 5 * time.Second
	defaultAttempts = 12

	// Per-query retry budget for transient gateway reads. The outer attempt
	// budget bounds the whole run, so this stays small.
	queryRetries        = 2
	queryInitialBackoff = 200 * time.Millisecond
)

type statusProvider interface {
	QueryStatus(ctx context.Context, token string) (*momo.QueryResult, error)
}

type settler interface {
	Settle(ctx context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) error
}

// PollerParams configure a bounded reconciliation poller.
type PollerParams struct {
	Provider statusProvider
	Payments settler
	Metrics  *metrics.ReconcileMetrics
	Logger   *logger.Logger
	Interval time.Duration
	Attempts int
	Source   string
}

// Poller drives the active reconciliation path: query the gateway on a fixed
// cadence until the payment reaches a terminal state or the attempt budget
// runs out. Queries are pure reads, so repeating them is always safe.
type Poller struct {
	provider statusProvider
	payments settler
	metrics  *metrics.ReconcileMetrics
	logg     *logger.Logger
	interval time.Duration
	attempts int
	source   string
}

// NewPoller builds a poller and validates its dependencies.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("status provider required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	attempts := params.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	source := params.Source
	if source == "" {
		source = "poller"
	}
	return &Poller{
		provider: params.Provider,
		payments: params.Payments,
		metrics:  params.Metrics,
		logg:     params.Logger,
		interval: interval,
		attempts: attempts,
		source:   source,
	}, nil
}

// Poll runs the bounded loop for one token. Exhausting the budget is not an
// error; the payment simply stays pending and the sweeper picks it up later.
func (p *Poller) Poll(ctx context.Context, token string) (Outcome, error) {
	ctx = p.logg.WithToken(ctx, token)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		result, err := p.queryOnce(ctx, token)
		if err != nil {
			attemptCtx := p.logg.WithField(ctx, "attempt", attempt)
			p.logg.Warn(attemptCtx, "gateway status query failed, will retry on next tick")
		} else if momo.IsTerminal(result.ResultCode) {
			return p.settle(ctx, token, result)
		}

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return OutcomeIndeterminate, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.metrics.IncOutcome(p.source, string(OutcomeIndeterminate))
	p.logg.Info(ctx, "poll budget exhausted, payment still pending")
	return OutcomeIndeterminate, nil
}

// ReconcileOnce does a single query-and-settle pass without waiting. The
// sweeper uses it for stale intents where nobody is watching the response.
func (p *Poller) ReconcileOnce(ctx context.Context, token string) (Outcome, error) {
	ctx = p.logg.WithToken(ctx, token)

	result, err := p.queryOnce(ctx, token)
	if err != nil {
		return OutcomeIndeterminate, err
	}
	if !momo.IsTerminal(result.ResultCode) {
		return OutcomeIndeterminate, nil
	}
	return p.settle(ctx, token, result)
}

// queryOnce wraps a single gateway read with a short retry on transient
// failures. Provider rejections and signature problems are not retryable.
func (p *Poller) queryOnce(ctx context.Context, token string) (*momo.QueryResult, error) {
	p.metrics.IncAttempt(p.source)

	var result *momo.QueryResult
	backoff := retry.WithMaxRetries(queryRetries, retry.NewExponential(queryInitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := p.provider.QueryStatus(ctx, token)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Poller) settle(ctx context.Context, token string, result *momo.QueryResult) (Outcome, error) {
	outcome := OutcomeFailed
	status := enums.IntentStatusFailed
	settlementRef := ""
	failureReason := fmt.Sprintf("momo result code %d: %s", result.ResultCode, result.Message)
	if momo.IsSuccess(result.ResultCode) {
		outcome = OutcomeComplete
		status = enums.IntentStatusComplete
		settlementRef = strconv.FormatInt(result.TransID, 10)
		failureReason = ""
	}

	if err := p.payments.Settle(ctx, token, status, settlementRef, failureReason); err != nil {
		// A conflict here means another path recorded a different outcome
		// first; the stored state wins and the caller re-reads it.
		return OutcomeIndeterminate, err
	}

	p.metrics.IncOutcome(p.source, string(outcome))
	p.logg.Info(p.logg.WithField(ctx, "outcome", string(outcome)), "payment reconciled")
	return outcome, nil
}
