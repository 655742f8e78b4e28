package repository

import (
	"context"

	"rcmos/internal/domain"
)

// InstanceRepository persists orchestrator instances with optimistic locking.
type InstanceRepository interface {
	// Create fails with ErrInstanceExists when the id is taken.
	Create(ctx context.Context, instance *domain.Instance) error
	Get(ctx context.Context, instanceID string) (*domain.Instance, error)
	// Update writes instance if the stored version equals instance.Version,
	// then bumps instance.Version. ErrOptimisticLockFailed on a lost race.
	Update(ctx context.Context, instance *domain.Instance) error
}
