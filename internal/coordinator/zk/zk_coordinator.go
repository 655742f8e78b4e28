package zk

import (
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	coordinator "rcmos/internal/coordinator/iface"
	"rcmos/internal/logger"

	"github.com/go-zookeeper/zk"
)

type zkCoordinator struct {
	conn   *zk.Conn
	logger logger.Logger

	mu   sync.Mutex
	held map[string]struct{}
}

// NewZKCoordinator creates a new ZooKeeper coordinator
func NewZKCoordinator(servers []string, sessionTimeout time.Duration, log logger.Logger) (coordinator.Coordinator, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	log.Info("connected to zookeeper",
		logger.Any("servers", servers),
	)

	return &zkCoordinator{
		conn:   conn,
		logger: log.With(logger.String("component", "zk_coordinator")),
		held:   make(map[string]struct{}),
	}, nil
}

// TryLock creates an ephemeral node at path. The node disappears with the
// session, so a crashed holder frees the lock once its session expires.
func (c *zkCoordinator) TryLock(lockPath string, owner []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[lockPath]; ok {
		exists, _, err := c.conn.Exists(lockPath)
		if err != nil {
			return false, fmt.Errorf("failed to check lock node: %w", err)
		}
		if exists {
			return true, nil
		}
		// session expired and took the node with it
		delete(c.held, lockPath)
		c.logger.Warn("lost lock", logger.String("path", lockPath))
	}

	if err := c.ensureParentPath(lockPath); err != nil {
		return false, err
	}

	_, err := c.conn.Create(lockPath, owner, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create lock node: %w", err)
	}

	c.held[lockPath] = struct{}{}
	c.logger.Info("acquired lock",
		logger.String("path", lockPath),
	)
	return true, nil
}

func (c *zkCoordinator) Unlock(lockPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[lockPath]; !ok {
		return coordinator.ErrNotHeld
	}
	delete(c.held, lockPath)

	if err := c.conn.Delete(lockPath, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}

	c.logger.Info("released lock",
		logger.String("path", lockPath),
	)
	return nil
}

func (c *zkCoordinator) Holder(lockPath string) ([]byte, error) {
	data, _, err := c.conn.Get(lockPath)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, fmt.Errorf("node not found: %s", lockPath)
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return data, nil
}

func (c *zkCoordinator) Close() error {
	c.logger.Info("closing zookeeper connection")
	c.conn.Close()
	return nil
}

// ensureParentPath creates the persistent ancestors of p.
func (c *zkCoordinator) ensureParentPath(p string) error {
	parent := path.Dir(p)
	if parent == "/" || parent == "." {
		return nil
	}

	exists, _, err := c.conn.Exists(parent)
	if err != nil {
		return fmt.Errorf("failed to check parent path: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.ensureParentPath(parent); err != nil {
		return err
	}

	_, err = c.conn.Create(parent, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create parent path: %w", err)
	}
	return nil
}
