// Package local is a single-process Coordinator for development and tests.
package local

import (
	"fmt"
	"sync"

	coordinator "rcmos/internal/coordinator/iface"
)

type localCoordinator struct {
	mu    sync.Mutex
	locks map[string][]byte
}

func NewLocalCoordinator() coordinator.Coordinator {
	return &localCoordinator{locks: make(map[string][]byte)}
}

func (c *localCoordinator) TryLock(path string, owner []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.locks[path]; ok {
		return string(current) == string(owner), nil
	}
	c.locks[path] = owner
	return true, nil
}

func (c *localCoordinator) Unlock(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.locks[path]; !ok {
		return coordinator.ErrNotHeld
	}
	delete(c.locks, path)
	return nil
}

func (c *localCoordinator) Holder(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.locks[path]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", path)
	}
	return owner, nil
}

func (c *localCoordinator) Close() error { return nil }
