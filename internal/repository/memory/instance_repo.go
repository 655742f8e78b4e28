package memory

import (
	"context"
	"sync"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"
)

type instanceRepository struct {
	mu        sync.Mutex
	instances map[string]*domain.Instance
	logger    logger.Logger
}

func NewInstanceRepository(log logger.Logger) repository.InstanceRepository {
	return &instanceRepository{
		instances: make(map[string]*domain.Instance),
		logger:    log.With(logger.String("component", "memory_instance_repository")),
	}
}

func (r *instanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[instance.InstanceID]; ok {
		return repository.ErrInstanceExists
	}
	r.instances[instance.InstanceID] = instance.Clone()
	return nil
}

func (r *instanceRepository) Get(ctx context.Context, instanceID string) (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	instance, ok := r.instances[instanceID]
	if !ok {
		return nil, repository.InstanceNotFound(instanceID)
	}
	return instance.Clone(), nil
}

func (r *instanceRepository) Update(ctx context.Context, instance *domain.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.instances[instance.InstanceID]
	if !ok {
		return repository.InstanceNotFound(instance.InstanceID)
	}
	if current.Version != instance.Version {
		return repository.ErrOptimisticLockFailed
	}

	instance.Version++
	instance.UpdatedAt = time.Now().UnixMilli()
	r.instances[instance.InstanceID] = instance.Clone()
	return nil
}
