// Package memory holds process-local repository drivers used by tests and
// by single-node development runs (store.driver=memory).
package memory

import (
	"context"
	"sync"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"
)

type runRepository struct {
	mu       sync.Mutex
	runs     map[string]*domain.Run
	mappings map[string]domain.IdempotencyMapping
	logger   logger.Logger
}

func NewRunRepository(log logger.Logger) repository.RunRepository {
	return &runRepository{
		runs:     make(map[string]*domain.Run),
		mappings: make(map[string]domain.IdempotencyMapping),
		logger:   log.With(logger.String("component", "memory_run_repository")),
	}
}

func (r *runRepository) CreateRunIfAbsent(ctx context.Context, key string, run *domain.Run) (*domain.Run, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mapping, ok := r.mappings[key]; ok {
		existing, ok := r.runs[mapping.RunID]
		if !ok {
			return nil, false, repository.RunNotFound(mapping.RunID)
		}
		return copyRun(existing), false, nil
	}

	stored := copyRun(run)
	r.runs[stored.RunID] = stored
	r.mappings[key] = domain.IdempotencyMapping{Key: key, RunID: stored.RunID, CreatedAt: time.Now().UnixMilli()}

	r.logger.Debug("run created", logger.String("run_id", stored.RunID))
	return copyRun(stored), true, nil
}

func (r *runRepository) Get(ctx context.Context, runID string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, repository.RunNotFound(runID)
	}
	return copyRun(run), nil
}

func (r *runRepository) MarkRunning(ctx context.Context, runID string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, repository.RunNotFound(runID)
	}
	switch {
	case run.Status == domain.RunStatusRunning:
	case run.Status.IsTerminal():
		return copyRun(run), repository.ErrAlreadyTerminal
	default:
		run.Status = domain.RunStatusRunning
		run.UpdatedAt = time.Now().UnixMilli()
	}
	return copyRun(run), nil
}

func (r *runRepository) UpdateTerminal(ctx context.Context, runID string, outcome domain.TerminalOutcome) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return nil, repository.RunNotFound(runID)
	}
	if run.Status.IsTerminal() {
		return copyRun(run), repository.ErrAlreadyTerminal
	}

	updated := copyRun(run)
	if err := updated.Apply(outcome); err != nil {
		return nil, err
	}
	r.runs[runID] = updated
	return copyRun(updated), nil
}

func copyRun(run *domain.Run) *domain.Run {
	c := *run
	return &c
}
