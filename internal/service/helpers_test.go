package service

import (
	"context"
	"testing"
	"time"

	"rcmos/internal/artifacts"
	cachememory "rcmos/internal/cache/memory"
	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	busmemory "rcmos/internal/eventbus/memory"
	"rcmos/internal/flow"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
	queue "rcmos/internal/queue/iface"
	queuememory "rcmos/internal/queue/memory"
	repository "rcmos/internal/repository/iface"
	repomemory "rcmos/internal/repository/memory"
	"rcmos/internal/retry"

	"github.com/stretchr/testify/require"
)

type fakeArtifacts struct{}

func (fakeArtifacts) List(ctx context.Context, runID string) ([]artifacts.Artifact, error) {
	return []artifacts.Artifact{{Key: artifacts.Prefix(runID) + "trace.zip", URL: "http://minio.local/trace.zip"}}, nil
}

type stack struct {
	runs    repository.RunRepository
	bus     eventbus.Bus
	client  orchestrator.Client
	service RunService
	portal  PortalService
}

// newStack wires the in-memory drivers with a live orchestrator worker.
// With startWorker false tasks queue up but nothing advances.
func newStack(t *testing.T, startWorker bool) *stack {
	t.Helper()
	log := logger.NewNop()

	runs := repomemory.NewRunRepository(log)
	instances := repomemory.NewInstanceRepository(log)
	bus := busmemory.NewMemoryBus(log)
	c := cachememory.NewMemoryCache()

	opts := orchestrator.Options{
		MfaTimeout:        time.Minute,
		AwaitPollInterval: 5 * time.Millisecond,
		ActivityRetry:     retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxAttempts: 2},
	}
	engine := orchestrator.NewEngine(orchestrator.EngineDeps{
		Instances: instances,
		Runs:      runs,
		Bus:       bus,
		Flow:      flow.NewEngine(log),
		Timers:    orchestrator.NewCacheTimers(c, ""),
	}, opts, log)

	q := queuememory.NewMemoryQueue[orchestrator.Task](queue.MessageProcessorFunc[orchestrator.Task](
		func(ctx context.Context, task orchestrator.Task) bool {
			return engine.Advance(ctx, task.InstanceID) == nil
		}), 2, log)
	if startWorker {
		require.NoError(t, q.StartConsumer(context.Background()))
		t.Cleanup(func() { q.StopConsumer(context.Background()) })
	}

	client := orchestrator.NewClient(instances, orchestrator.NewTaskQueue(q), opts, log)
	return &stack{
		runs:    runs,
		bus:     bus,
		client:  client,
		service: NewRunService(runs, client, bus, c, fakeArtifacts{}, RunServiceConfig{AwaitTimeout: 2 * time.Second, TerminalTTL: time.Minute}, log),
		portal:  NewPortalService(client, 2*time.Second, log),
	}
}

func eligibilityRequest() SubmitRunRequest {
	return SubmitRunRequest{
		Purpose: "eligibility",
		PayerID: "PAYER1",
		Input:   map[string]any{"member_id": "M1"},
	}
}

func waitForPhase(t *testing.T, client orchestrator.Client, id string, phase domain.InstancePhase) domain.RunExecutionState {
	t.Helper()
	var state domain.RunExecutionState
	require.Eventually(t, func() bool {
		s, err := client.Query(context.Background(), id)
		if err != nil {
			return false
		}
		state = s
		return s.Phase == phase
	}, 2*time.Second, 5*time.Millisecond)
	return state
}
