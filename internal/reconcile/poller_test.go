package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftcv/craftcv-backend/pkg/enums"
	pkgerrors "github.com/craftcv/craftcv-backend/pkg/errors"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/momo"
)

type queryStep struct {
	result *momo.QueryResult
	err    error
}

type scriptedProvider struct {
	steps []queryStep
	calls int
}

func (s *scriptedProvider) QueryStatus(_ context.Context, _ string) (*momo.QueryResult, error) {
	step := s.steps[len(s.steps)-1]
	if s.calls < len(s.steps) {
		step = s.steps[s.calls]
	}
	s.calls++
	if step.err != nil {
		return nil, step.err
	}
	return step.result, nil
}

type recordingSettler struct {
	err   error
	calls []settleCall
}

type settleCall struct {
	token         string
	outcome       enums.IntentStatus
	settlementRef string
	failureReason string
}

func (r *recordingSettler) Settle(_ context.Context, token string, outcome enums.IntentStatus, settlementRef, failureReason string) error {
	r.calls = append(r.calls, settleCall{token, outcome, settlementRef, failureReason})
	return r.err
}

func newTestPoller(t *testing.T, provider *scriptedProvider, settler *recordingSettler, attempts int) *Poller {
	t.Helper()

	poller, err := NewPoller(PollerParams{
		Provider: provider,
		Payments: settler,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Interval: time.Millisecond,
		Attempts: attempts,
		Source:   "poller",
	})
	require.NoError(t, err)
	return poller
}

func pending() queryStep {
	return queryStep{result: &momo.QueryResult{ResultCode: momo.ResultCodeWaitingUser, Message: "waiting"}}
}

func success() queryStep {
	return queryStep{result: &momo.QueryResult{ResultCode: momo.ResultCodeSuccess, Message: "Successful.", TransID: 987654}}
}

func failed() queryStep {
	return queryStep{result: &momo.QueryResult{ResultCode: momo.ResultCodeUserCancelled, Message: "cancelled"}}
}

func TestPollSettlesOnceTerminal(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending(), pending(), success()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 12)

	outcome, err := poller.Poll(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, outcome)
	assert.Equal(t, 3, provider.calls)

	require.Len(t, settler.calls, 1)
	call := settler.calls[0]
	assert.Equal(t, "tok-1", call.token)
	assert.Equal(t, enums.IntentStatusComplete, call.outcome)
	assert.Equal(t, "987654", call.settlementRef)
}

func TestPollReportsFailure(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{failed()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 12)

	outcome, err := poller.Poll(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	require.Len(t, settler.calls, 1)
	assert.Equal(t, enums.IntentStatusFailed, settler.calls[0].outcome)
	assert.Contains(t, settler.calls[0].failureReason, "1006")
}

func TestPollExhaustsBudgetAsIndeterminate(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 3)

	outcome, err := poller.Poll(context.Background(), "tok-1")
	require.NoError(t, err, "budget exhaustion is not an error")
	assert.Equal(t, OutcomeIndeterminate, outcome)
	assert.Equal(t, 3, provider.calls)
	assert.Empty(t, settler.calls)
}

func TestPollStopsOnContextCancel(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending()}}
	settler := &recordingSettler{}
	poller, err := NewPoller(PollerParams{
		Provider: provider,
		Payments: settler,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Interval: time.Minute,
		Attempts: 12,
		Source:   "poller",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	outcome, err := poller.Poll(ctx, "tok-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeIndeterminate, outcome)
}

func TestPollContinuesAfterQueryError(t *testing.T) {
	queryErr := pkgerrors.New(pkgerrors.CodeInternal, "malformed gateway response")
	provider := &scriptedProvider{steps: []queryStep{{err: queryErr}, success()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 12)

	outcome, err := poller.Poll(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, outcome)
}

func TestPollPropagatesSettleConflict(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{success()}}
	settler := &recordingSettler{err: pkgerrors.New(pkgerrors.CodeStateConflict, "payment already resolved differently")}
	poller := newTestPoller(t, provider, settler, 12)

	outcome, err := poller.Poll(context.Background(), "tok-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, OutcomeIndeterminate, outcome)
}

func TestReconcileOnceDoesNotWait(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{pending()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 12)

	start := time.Now()
	outcome, err := poller.ReconcileOnce(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndeterminate, outcome)
	assert.Equal(t, 1, provider.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReconcileOnceSettlesTerminal(t *testing.T) {
	provider := &scriptedProvider{steps: []queryStep{success()}}
	settler := &recordingSettler{}
	poller := newTestPoller(t, provider, settler, 12)

	outcome, err := poller.ReconcileOnce(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, outcome)
	require.Len(t, settler.calls, 1)
}
