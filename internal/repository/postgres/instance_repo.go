package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type instanceRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewInstanceRepository stores each instance as a JSONB document guarded by a version column.
func NewInstanceRepository(pool *pgxpool.Pool, log logger.Logger) repository.InstanceRepository {
	return &instanceRepository{
		pool:   pool,
		logger: log.With(logger.String("component", "pg_instance_repository")),
	}
}

func (r *instanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	doc, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO run_instances (instance_id, run_id, version, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_id) DO NOTHING`,
		instance.InstanceID, nullable(instance.RunID), instance.Version, doc)
	if err != nil {
		return domain.Transport("insert instance", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrInstanceExists
	}
	return nil
}

func (r *instanceRepository) Get(ctx context.Context, instanceID string) (*domain.Instance, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM run_instances WHERE instance_id = $1`, instanceID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.InstanceNotFound(instanceID)
	}
	if err != nil {
		return nil, domain.Transport("get instance", err)
	}

	var instance domain.Instance
	if err := json.Unmarshal(doc, &instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &instance, nil
}

func (r *instanceRepository) Update(ctx context.Context, instance *domain.Instance) error {
	expected := instance.Version
	next := instance.Clone()
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UnixMilli()

	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE run_instances SET doc = $3, version = $4, updated_at = NOW()
		WHERE instance_id = $1 AND version = $2`,
		instance.InstanceID, expected, doc, next.Version)
	if err != nil {
		return domain.Transport("update instance", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, instance.InstanceID); err != nil {
			return err
		}
		r.logger.Warn("optimistic lock failed - instance was modified by another worker",
			logger.String("instance_id", instance.InstanceID),
			logger.Int64("expected_version", expected))
		return fmt.Errorf("%w: instance_id=%s", repository.ErrOptimisticLockFailed, instance.InstanceID)
	}

	instance.Version = next.Version
	instance.UpdatedAt = next.UpdatedAt
	return nil
}
