package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	coordinator "rcmos/internal/coordinator/iface"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"

	"github.com/robfig/cron/v3"
)

const sweepBatch = 100

type SweeperConfig struct {
	Spec     string
	LockPath string
	NodeID   string
}

// Sweeper turns expired code deadlines back into advance tasks. Only the
// node holding the coordinator lock sweeps.
type Sweeper struct {
	timers Timers
	tasks  TaskQueue
	coord  coordinator.Coordinator
	config SweeperConfig
	logger logger.Logger
	cron   *cron.Cron
	now    func() time.Time

	mu     sync.Mutex
	leader bool
}

func NewSweeper(timers Timers, tasks TaskQueue, coord coordinator.Coordinator, config SweeperConfig, log logger.Logger) *Sweeper {
	return &Sweeper{
		timers: timers,
		tasks:  tasks,
		coord:  coord,
		config: config,
		logger: log.With(logger.String("component", "timer_sweeper")),
		cron:   cron.New(cron.WithSeconds()),
		now:    time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.config.Spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("sweep failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add sweep cron: %w", err)
	}

	s.cron.Start()
	s.logger.Info("timer sweeper started",
		logger.String("spec", s.config.Spec),
		logger.String("node_id", s.config.NodeID))
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leader {
		s.leader = false
		if err := s.coord.Unlock(s.config.LockPath); err != nil {
			s.logger.Warn("failed to release sweeper lock", logger.Error(err))
		}
	}
	return nil
}

// Sweep pops due deadlines and enqueues one timer task per instance. It
// returns how many tasks were enqueued; non-leaders sweep nothing.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	held, err := s.coord.TryLock(s.config.LockPath, []byte(s.config.NodeID))
	if err != nil {
		return 0, fmt.Errorf("failed to take sweeper lock: %w", err)
	}

	s.mu.Lock()
	if held != s.leader {
		s.logger.Info("sweeper leadership changed", logger.Bool("leader", held))
	}
	s.leader = held
	s.mu.Unlock()

	if !held {
		return 0, nil
	}

	enqueued := 0
	for {
		due, err := s.timers.PopDue(ctx, s.now(), sweepBatch)
		if err != nil {
			return enqueued, err
		}
		for i, id := range due {
			if err := s.tasks.Enqueue(ctx, Task{InstanceID: id, Reason: ReasonTimer}); err != nil {
				s.restore(ctx, due[i:])
				return enqueued, err
			}
			enqueued++
		}
		if len(due) < sweepBatch {
			break
		}
	}

	if enqueued > 0 {
		metrics.AddTimersSwept(enqueued)
		s.logger.Info("expired code waits swept", logger.Int("count", enqueued))
	}
	return enqueued, nil
}

// restore puts popped deadlines back so the next sweep retries them.
func (s *Sweeper) restore(ctx context.Context, ids []string) {
	for _, id := range ids {
		if err := s.timers.Register(ctx, id, s.now()); err != nil {
			s.logger.Error("failed to restore timer",
				logger.String("instance_id", id),
				logger.Error(err))
		}
	}
}
