package repository

import (
	"context"

	"rcmos/internal/domain"
)

// RunRepository persists runs and the fingerprint index that deduplicates them.
type RunRepository interface {
	// CreateRunIfAbsent atomically inserts run and its mapping unless key is
	// already mapped, in which case the existing run is returned with isNew=false.
	CreateRunIfAbsent(ctx context.Context, key string, run *domain.Run) (stored *domain.Run, isNew bool, err error)
	Get(ctx context.Context, runID string) (*domain.Run, error)
	// MarkRunning moves a queued run to running. Already running is a no-op.
	MarkRunning(ctx context.Context, runID string) (*domain.Run, error)
	// UpdateTerminal records the final outcome once. ErrAlreadyTerminal otherwise.
	UpdateTerminal(ctx context.Context, runID string, outcome domain.TerminalOutcome) (*domain.Run, error)
}
