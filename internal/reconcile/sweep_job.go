package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
)

const (
	defaultStaleAfter = 2 * time.Minute
	defaultBatchSize  = 50
)

type staleIntentLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
}

// SweepJobParams configure the background sweeper.
type SweepJobParams struct {
	Intents    staleIntentLister
	Poller     *Poller
	Logger     *logger.Logger
	StaleAfter time.Duration
	BatchSize  int
}

// SweepJob is the safety net behind the interactive poller. It finds intents
// that have sat pending past the staleness cutoff, asks the gateway once per
// intent, and settles any that reached a terminal state while nobody was
// polling.
type SweepJob struct {
	intents    staleIntentLister
	poller     *Poller
	logg       *logger.Logger
	staleAfter time.Duration
	batchSize  int
}

// NewSweepJob builds the sweeper.
func NewSweepJob(params SweepJobParams) (*SweepJob, error) {
	if params.Intents == nil {
		return nil, fmt.Errorf("intent lister required")
	}
	if params.Poller == nil {
		return nil, fmt.Errorf("poller required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SweepJob{
		intents:    params.Intents,
		poller:     params.Poller,
		logg:       params.Logger,
		staleAfter: staleAfter,
		batchSize:  batchSize,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *SweepJob) Name() string {
	return "payment_intent_sweep"
}

// Run reconciles one batch of stale intents. Per-intent failures are
// collected rather than aborting the batch; one bad token must not starve
// the rest.
func (j *SweepJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.staleAfter)
	stale, err := j.intents.ListStalePending(ctx, cutoff, j.batchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale intents")
	}
	if len(stale) == 0 {
		return nil
	}

	j.logg.Info(j.logg.WithField(ctx, "count", len(stale)), "sweeping stale payment intents")

	var errs error
	for i := range stale {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		token := stale[i].Token
		outcome, err := j.poller.ReconcileOnce(ctx, token)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				// Another path settled it between the list and the query.
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("sweep %s: %w", token, err))
			continue
		}
		if outcome == OutcomeIndeterminate {
			// Still pending at the gateway; the next cycle retries it.
			continue
		}
	}
	return errs
}
