package rmutex

import (
	"errors"
)

var (
	// ErrInvalidOperation matches (via [errors.Is]) every lock usage fault
	// returned by this package.
	ErrInvalidOperation = errors.New("rmutex: invalid operation")

	// ErrLockAfterShared indicates a blocking exclusive lock was attempted by
	// a goroutine holding a plain shared lock, which would wait on itself.
	ErrLockAfterShared = errors.New("possible deadlock: cannot lock after shared-lock in a single goroutine, use upgradable-shared-lock instead")

	// ErrTryLockAfterShared is the non-blocking equivalent of
	// ErrLockAfterShared. Retrying the attempt could never succeed.
	ErrTryLockAfterShared = errors.New("possible livelock: cannot try-lock after shared-lock in a single goroutine, use upgradable-shared-lock instead")

	// ErrUpgradableAfterShared indicates an upgradable-shared lock was
	// attempted by a goroutine already holding a plain shared lock.
	ErrUpgradableAfterShared = errors.New("cannot acquire upgradable-shared-lock after shared-lock in a single goroutine")

	// ErrSharedAfterUpgradable indicates a plain shared lock was attempted by
	// a goroutine holding the upgradable-shared lock (but not the exclusive
	// lock).
	ErrSharedAfterUpgradable = errors.New("cannot acquire shared-lock while holding upgradable-shared-lock")

	// ErrUpgradeStillLocked indicates the upgradable-shared lock was released
	// while the exclusive lock obtained by upgrading it was still held.
	ErrUpgradeStillLocked = errors.New("cannot release upgradable-shared-lock while its upgrade is locked")

	// ErrNotLocked indicates a release of a mode the calling goroutine does
	// not hold.
	ErrNotLocked = errors.New("not locked by the calling goroutine")
)

// InvalidOperationError is returned for every lock usage fault. Err is one of
// the sentinel errors of this package.
type InvalidOperationError struct {
	Err error
	// Op is the name of the method, e.g. "Lock" or "SharedUnlock".
	Op string
}

func (e *InvalidOperationError) Error() string {
	return "rmutex: invalid operation: " + e.Op + ": " + e.Err.Error()
}

func (e *InvalidOperationError) Unwrap() error { return e.Err }

// Is returns true for ErrInvalidOperation.
func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

func invalidOperation(op string, err error) error {
	return &InvalidOperationError{Op: op, Err: err}
}
