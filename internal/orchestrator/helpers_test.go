package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cachememory "rcmos/internal/cache/memory"
	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	busmemory "rcmos/internal/eventbus/memory"
	"rcmos/internal/flow"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"
	repomemory "rcmos/internal/repository/memory"
	"rcmos/internal/retry"

	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (q *recordingQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) reasons() []TaskReason {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskReason, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Reason)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) SendMessage(ctx context.Context, channel, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, channel+": "+message)
	return nil
}

// flakyBus fails the first failures publishes.
type flakyBus struct {
	eventbus.Bus
	mu       sync.Mutex
	failures int
	calls    int
}

func (b *flakyBus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.Lock()
	b.calls++
	fail := b.calls <= b.failures
	b.mu.Unlock()
	if fail {
		return domain.Transport("publish", errors.New("connection refused"))
	}
	return b.Bus.Publish(ctx, event)
}

// hookedInstances runs beforeUpdate ahead of every instance write.
type hookedInstances struct {
	repository.InstanceRepository
	mu           sync.Mutex
	beforeUpdate func(next *domain.Instance)
}

func (r *hookedInstances) Update(ctx context.Context, instance *domain.Instance) error {
	r.mu.Lock()
	hook := r.beforeUpdate
	r.mu.Unlock()
	if hook != nil {
		hook(instance)
	}
	return r.InstanceRepository.Update(ctx, instance)
}

func (r *hookedInstances) setHook(hook func(next *domain.Instance)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeUpdate = hook
}

// typedFailBus fails publishes of one event type until failures run out.
type typedFailBus struct {
	eventbus.Bus
	mu        sync.Mutex
	eventType domain.EventType
	failures  int
}

func (b *typedFailBus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.Lock()
	fail := event.Type == b.eventType && b.failures > 0
	if fail {
		b.failures--
	}
	b.mu.Unlock()
	if fail {
		return domain.Transport("publish", errors.New("connection refused"))
	}
	return b.Bus.Publish(ctx, event)
}

type harness struct {
	engine    *engine
	client    *client
	runs      repository.RunRepository
	instances *hookedInstances
	bus       eventbus.Bus
	tasks     *recordingQueue
	timers    Timers
	notifier  *recordingNotifier
}

func testOptions() Options {
	return Options{
		MfaTimeout:        time.Minute,
		AwaitPollInterval: 5 * time.Millisecond,
		ActivityRetry:     retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxAttempts: 3},
		OperatorChannel:   "#ops",
	}
}

func newHarness(t *testing.T, bus eventbus.Bus) *harness {
	t.Helper()
	log := logger.NewNop()
	if bus == nil {
		bus = busmemory.NewMemoryBus(log)
	}

	h := &harness{
		runs:      repomemory.NewRunRepository(log),
		instances: &hookedInstances{InstanceRepository: repomemory.NewInstanceRepository(log)},
		bus:       bus,
		tasks:     &recordingQueue{},
		timers:    NewCacheTimers(cachememory.NewMemoryCache(), ""),
		notifier:  &recordingNotifier{},
	}

	h.engine = NewEngine(EngineDeps{
		Instances: h.instances,
		Runs:      h.runs,
		Bus:       bus,
		Flow:      flow.NewEngine(log),
		Timers:    h.timers,
		Notifier:  h.notifier,
	}, testOptions(), log).(*engine)
	h.client = NewClient(h.instances, h.tasks, testOptions(), log).(*client)
	return h
}

// seedRun stores a queued run and starts its instance.
func (h *harness) seedRun(t *testing.T, steps []domain.Step) *domain.Run {
	t.Helper()
	ctx := context.Background()

	run := domain.NewRun("eligibility", "PAYER1", "", map[string]any{"member_id": "M1"})
	stored, isNew, err := h.runs.CreateRunIfAbsent(ctx, "key-"+run.RunID, run)
	require.NoError(t, err)
	require.True(t, isNew)

	_, err = h.client.Start(ctx, domain.StartRequest{
		InstanceID: stored.RunID,
		RunID:      stored.RunID,
		FlowID:     "test-flow",
		Steps:      steps,
		Input:      stored.InputPayload,
	})
	require.NoError(t, err)
	return stored
}

func (h *harness) subscribe(t *testing.T, runID string) eventbus.Subscription {
	t.Helper()
	sub, err := h.bus.Subscribe(context.Background(), domain.EventFilter{RunID: runID})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub
}

func drain(sub eventbus.Subscription) []domain.EventType {
	var types []domain.EventType
	for {
		select {
		case e := <-sub.Events():
			types = append(types, e.Type)
		case <-time.After(20 * time.Millisecond):
			return types
		}
	}
}
