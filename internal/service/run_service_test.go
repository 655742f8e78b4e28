package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rcmos/internal/domain"
	busmemory "rcmos/internal/eventbus/memory"
	"rcmos/internal/logger"
	repomemory "rcmos/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitSignalSucceed(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	run, created, err := s.service.SubmitRun(ctx, eligibilityRequest())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RunStatusQueued, run.Status)

	state := waitForPhase(t, s.client, run.RunID, domain.PhaseAwaitingCode)
	assert.True(t, state.WaitingMfa)

	running, err := s.service.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, running.Status)

	require.NoError(t, s.service.Signal(ctx, run.RunID, "123456"))

	output, err := s.service.AwaitOutcome(ctx, run.RunID, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, output["steps"])

	require.Eventually(t, func() bool {
		r, err := s.service.GetRun(ctx, run.RunID)
		return err == nil && r.Status == domain.RunStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	// terminal runs are served from cache after the first read
	cached, err := s.service.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, cached.Status)
	assert.Empty(t, cached.ErrorCode)
}

func TestSubmitDeduplicates(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	first, created, err := s.service.SubmitRun(ctx, SubmitRunRequest{
		Purpose: "eligibility", PayerID: "PAYER1",
		Input: map[string]any{"member_id": "M1", "service_date": "2024-01-02"},
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.service.SubmitRun(ctx, SubmitRunRequest{
		Purpose: "eligibility", PayerID: "PAYER1",
		Input: map[string]any{"service_date": "2024-01-02", "member_id": "M1"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.RunID, second.RunID)
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]struct{}{}
		winners int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, created, err := s.service.SubmitRun(ctx, eligibilityRequest())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[run.RunID] = struct{}{}
			if created {
				winners++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, winners)
}

func TestHintsParticipateInKey(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	first, _, err := s.service.SubmitRun(ctx, eligibilityRequest())
	require.NoError(t, err)

	withHint := eligibilityRequest()
	withHint.IdempotencyHints = map[string]any{"note": "retry"}
	second, created, err := s.service.SubmitRun(ctx, withHint)
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestCreatedEventPrecedesBreakpoint(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	sub, err := s.bus.Subscribe(ctx, domain.EventFilter{})
	require.NoError(t, err)
	defer sub.Close()

	run, _, err := s.service.SubmitRun(ctx, eligibilityRequest())
	require.NoError(t, err)

	var seen []domain.EventType
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case e := <-sub.Events():
			if e.RunID == run.RunID {
				seen = append(seen, e.Type)
			}
		case <-timeout:
			t.Fatalf("saw only %v", seen)
		}
	}
	assert.Equal(t, []domain.EventType{domain.EventRunCreated, domain.EventMfaRequested}, seen)

	// the created event is only sent once the run can be read back
	_, err = s.runs.Get(ctx, run.RunID)
	assert.NoError(t, err)
}

func TestLookupsReportNotFound(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	_, err := s.service.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.service.GetRunState(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.service.ListArtifacts(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.service.Signal(ctx, "missing", "1"), domain.ErrNotFound)
}

func TestSubmitValidation(t *testing.T) {
	s := newStack(t, false)

	_, _, err := s.service.SubmitRun(context.Background(), SubmitRunRequest{PayerID: "P"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = s.service.SubmitRun(context.Background(), SubmitRunRequest{Purpose: "eligibility"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListArtifacts(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	run, _, err := s.service.SubmitRun(ctx, eligibilityRequest())
	require.NoError(t, err)

	list, err := s.service.ListArtifacts(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "runs/"+run.RunID+"/trace.zip", list[0].Key)
}

type flakyStarter struct {
	failures int
	starts   []string
}

func (f *flakyStarter) Start(ctx context.Context, req domain.StartRequest) (string, error) {
	f.starts = append(f.starts, req.InstanceID)
	if len(f.starts) <= f.failures {
		return "", domain.Transport("enqueue", errors.New("queue unavailable"))
	}
	return req.InstanceID, nil
}

func (f *flakyStarter) Query(ctx context.Context, id string) (domain.RunExecutionState, error) {
	return domain.RunExecutionState{}, domain.NotFoundf("instance %s", id)
}

func (f *flakyStarter) SignalMfaCode(ctx context.Context, id, code string) error { return nil }

func (f *flakyStarter) AwaitResult(ctx context.Context, id string, timeout time.Duration) (map[string]any, error) {
	return nil, domain.ErrStillRunning
}

func TestResubmitRestartsQueuedRun(t *testing.T) {
	log := logger.NewNop()
	starter := &flakyStarter{failures: 1}
	svc := NewRunService(repomemory.NewRunRepository(log), starter, busmemory.NewMemoryBus(log), nil, fakeArtifacts{}, RunServiceConfig{}, log)
	ctx := context.Background()

	_, _, err := svc.SubmitRun(ctx, eligibilityRequest())
	assert.ErrorIs(t, err, domain.ErrTransport)

	run, created, err := svc.SubmitRun(ctx, eligibilityRequest())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{run.RunID, run.RunID}, starter.starts)
}

func TestBatchIDTagsRunEvents(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	sub, err := s.bus.Subscribe(ctx, domain.EventFilter{BatchID: "batch-9"})
	require.NoError(t, err)
	defer sub.Close()

	req := eligibilityRequest()
	req.BatchID = "batch-9"
	run, created, err := s.service.SubmitRun(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	var got []domain.EventType
	for len(got) < 2 {
		select {
		case event := <-sub.Events():
			assert.Equal(t, run.RunID, event.RunID)
			assert.Equal(t, "batch-9", event.BatchID)
			got = append(got, event.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected created and mfa events, got %v", got)
		}
	}
	assert.Equal(t, []domain.EventType{domain.EventRunCreated, domain.EventMfaRequested}, got)

	other, _, err := s.service.SubmitRun(ctx, SubmitRunRequest{
		Purpose: "eligibility", PayerID: "PAYER2", Input: map[string]any{"member_id": "M2"},
	})
	require.NoError(t, err)
	waitForPhase(t, s.client, other.RunID, domain.PhaseAwaitingCode)
	select {
	case event := <-sub.Events():
		t.Fatalf("unbatched run leaked into batch stream: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
