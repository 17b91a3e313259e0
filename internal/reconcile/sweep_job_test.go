package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftcv/craftcv-backend/pkg/db/models"
	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
)

type stubLister struct {
	intents []models.PaymentIntent
	err     error
	cutoff  time.Time
}

func (s *stubLister) ListStalePending(_ context.Context, cutoff time.Time, _ int) ([]models.PaymentIntent, error) {
	s.cutoff = cutoff
	return s.intents, s.err
}

func staleIntent(token string) models.PaymentIntent {
	return models.PaymentIntent{
		Token:     token,
		OrderID:   uuid.New(),
		Status:    enums.IntentStatusPending,
		Amount:    decimal.NewFromInt(500000),
		CreatedAt: time.Now().UTC().Add(-10 * time.Minute),
	}
}

func newTestSweepJob(t *testing.T, lister *stubLister, poller *Poller) *SweepJob {
	t.Helper()

	job, err := NewSweepJob(SweepJobParams{
		Intents:    lister,
		Poller:     poller,
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		StaleAfter: 2 * time.Minute,
		BatchSize:  50,
	})
	require.NoError(t, err)
	return job
}

func TestSweepNoStaleIntents(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending()}}
	settler := &recordingSettler{}
	job := newTestSweepJob(t, &stubLister{}, newTestPoller(t, provider, settler, 12))

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, provider.calls, "an empty batch must not touch the gateway")
}

func TestSweepSettlesTerminalIntents(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{success(), pending()}}
	settler := &recordingSettler{}
	lister := &stubLister{intents: []models.PaymentIntent{staleIntent("tok-1"), staleIntent("tok-2")}}
	job := newTestSweepJob(t, lister, newTestPoller(t, provider, settler, 12))

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 2, provider.calls, "one query per stale intent, no polling loop")
	require.Len(t, settler.calls, 1)
	assert.Equal(t, "tok-1", settler.calls[0].token)
	assert.Equal(t, enums.IntentStatusComplete, settler.calls[0].outcome)
	assert.WithinDuration(t, time.Now().UTC().Add(-2*time.Minute), lister.cutoff, 5*time.Second)
}

func TestSweepCollectsPerIntentErrors(t *testing.T) {
	queryErr := pkgerrors.New(pkgerrors.CodeInternal, "malformed gateway response")
	provider := &scriptedProvider{steps: []queryStep{{err: queryErr}, success()}}
	settler := &recordingSettler{}
	lister := &stubLister{intents: []models.PaymentIntent{staleIntent("tok-1"), staleIntent("tok-2")}}
	job := newTestSweepJob(t, lister, newTestPoller(t, provider, settler, 12))

	err := job.Run(context.Background())
	require.Error(t, err, "failed tokens surface after the batch completes")

	// The failure on tok-1 must not starve tok-2.
	require.Len(t, settler.calls, 1)
	assert.Equal(t, "tok-2", settler.calls[0].token)
}

func TestSweepSkipsConcurrentlySettledIntents(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{success(), success()}}
	settler := &recordingSettler{err: pkgerrors.New(pkgerrors.CodeStateConflict, "payment already resolved differently")}
	lister := &stubLister{intents: []models.PaymentIntent{staleIntent("tok-1"), staleIntent("tok-2")}}
	job := newTestSweepJob(t, lister, newTestPoller(t, provider, settler, 12))

	require.NoError(t, job.Run(context.Background()), "conflicts mean another path won, not a sweep failure")
	assert.Equal(t, 2, provider.calls)
}

func TestSweepListFailure(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending()}}
	settler := &recordingSettler{}
	lister := &stubLister{err: assert.AnError}
	job := newTestSweepJob(t, lister, newTestPoller(t, provider, settler, 12))

	err := job.Run(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
