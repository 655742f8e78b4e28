package repository

import (
	"errors"
	"fmt"

	"rcmos/internal/domain"
)

var (
	ErrAlreadyTerminal      = errors.New("run already in a terminal state")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed: record was modified by another process")
	ErrInstanceExists       = errors.New("instance already exists")
)

func RunNotFound(runID string) error {
	return fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
}

func InstanceNotFound(instanceID string) error {
	return fmt.Errorf("%w: instance %s", domain.ErrNotFound, instanceID)
}

func IsOptimisticLockError(err error) bool {
	return errors.Is(err, ErrOptimisticLockFailed)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
