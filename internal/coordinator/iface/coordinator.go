package coordinator

import "errors"

var ErrNotHeld = errors.New("lock not held")

// Coordinator provides cluster-wide leadership for singleton jobs.
type Coordinator interface {
	// TryLock attempts to take the lock at path without blocking. It reports
	// true when this process holds the lock, including when it already did.
	TryLock(path string, owner []byte) (bool, error)
	// Unlock releases a lock previously taken with TryLock.
	Unlock(path string) error
	// Holder returns the owner data of the current lock holder.
	Holder(path string) ([]byte, error)
	Close() error
}
