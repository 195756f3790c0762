package rmutex

import (
	"github.com/joeycumines/go-tickloop/internal/goroutineid"
)

type (
	// Mutex is a goroutine-recursive exclusive lock. The zero value is
	// unlocked and ready to use. A Mutex must not be copied after first use.
	Mutex struct {
		_ [0]func()
		c core
	}

	// SharedMutex is a Mutex that also supports shared (read) locking.
	SharedMutex struct {
		_ [0]func()
		c core
	}

	// UpgradableMutex is a SharedMutex that also supports the
	// upgradable-shared mode. A goroutine holding upgradable-shared may
	// acquire the exclusive lock, once all other shared holders release.
	UpgradableMutex struct {
		_ [0]func()
		c core
	}
)

func (c *core) lockGuard(try bool) (*LockGuard, bool, error) {
	gid := goroutineid.Get()
	if ok, err := c.lock(gid, try); !ok {
		return nil, false, err
	}
	return newLockGuard(c, gid), true, nil
}

func (c *core) sharedLockGuard(try bool) (*SharedLockGuard, bool, error) {
	gid := goroutineid.Get()
	if ok, err := c.sharedLock(gid, try); !ok {
		return nil, false, err
	}
	return newSharedLockGuard(c, gid), true, nil
}

func (c *core) upgradableLockGuard(try bool) (*UpgradableSharedLockGuard, bool, error) {
	gid := goroutineid.Get()
	if ok, err := c.upgradableLock(gid, try); !ok {
		return nil, false, err
	}
	return newUpgradableSharedLockGuard(c, gid), true, nil
}

// lockAndDo calls fn while holding the exclusive lock, releasing it on every
// exit path, including a panic.
func (c *core) lockAndDo(fn func() error) (err error) {
	g, _, err := c.lockGuard(false)
	if err != nil {
		return err
	}
	defer func() {
		if e := g.Unlock(); err == nil {
			err = e
		}
	}()
	return fn()
}

// Lock acquires the exclusive lock, blocking until it is available.
// The calling goroutine may already hold it.
func (m *Mutex) Lock() (*LockGuard, error) {
	g, _, err := m.c.lockGuard(false)
	return g, err
}

// TryLock is the non-blocking form of Lock.
func (m *Mutex) TryLock() (*LockGuard, bool, error) { return m.c.lockGuard(true) }

// Unlock releases one level of the exclusive lock held by the calling
// goroutine.
func (m *Mutex) Unlock() error { return m.c.unlock(goroutineid.Get()) }

// LockAndDo calls fn while holding the exclusive lock.
func (m *Mutex) LockAndDo(fn func() error) error { return m.c.lockAndDo(fn) }

// State returns a snapshot of the current ownership.
func (m *Mutex) State() State { return m.c.state() }

// Lock acquires the exclusive lock, blocking until it is available. It fails
// with ErrLockAfterShared if the calling goroutine holds a shared lock (and
// not the exclusive lock).
func (m *SharedMutex) Lock() (*LockGuard, error) {
	g, _, err := m.c.lockGuard(false)
	return g, err
}

// TryLock is the non-blocking form of Lock. Contention is reported as false,
// usage faults are reported as errors, see ErrTryLockAfterShared.
func (m *SharedMutex) TryLock() (*LockGuard, bool, error) { return m.c.lockGuard(true) }

// Unlock releases one level of the exclusive lock held by the calling
// goroutine.
func (m *SharedMutex) Unlock() error { return m.c.unlock(goroutineid.Get()) }

// SharedLock acquires a shared lock, blocking while another goroutine holds
// the exclusive lock. It succeeds immediately if the calling goroutine holds
// the exclusive lock.
func (m *SharedMutex) SharedLock() (*SharedLockGuard, error) {
	g, _, err := m.c.sharedLockGuard(false)
	return g, err
}

// TrySharedLock is the non-blocking form of SharedLock.
func (m *SharedMutex) TrySharedLock() (*SharedLockGuard, bool, error) {
	return m.c.sharedLockGuard(true)
}

// SharedUnlock releases one level of the calling goroutine's shared lock.
func (m *SharedMutex) SharedUnlock() error { return m.c.sharedUnlock(goroutineid.Get()) }

// LockAndDo calls fn while holding the exclusive lock.
func (m *SharedMutex) LockAndDo(fn func() error) error { return m.c.lockAndDo(fn) }

// State returns a snapshot of the current ownership.
func (m *SharedMutex) State() State { return m.c.state() }

// Lock acquires the exclusive lock, blocking until it is available.
//
// If the calling goroutine holds the upgradable-shared lock, this upgrades
// it, waiting only for the other shared holders to release. Releasing the
// exclusive lock then returns the goroutine to upgradable-shared.
//
// It fails with ErrLockAfterShared if the calling goroutine holds a plain
// shared lock without holding upgradable-shared or exclusive.
func (m *UpgradableMutex) Lock() (*LockGuard, error) {
	g, _, err := m.c.lockGuard(false)
	return g, err
}

// TryLock is the non-blocking form of Lock.
func (m *UpgradableMutex) TryLock() (*LockGuard, bool, error) { return m.c.lockGuard(true) }

// Unlock releases one level of the exclusive lock held by the calling
// goroutine.
func (m *UpgradableMutex) Unlock() error { return m.c.unlock(goroutineid.Get()) }

// SharedLock acquires a plain shared lock. It fails with
// ErrSharedAfterUpgradable if the calling goroutine holds upgradable-shared
// but not exclusive.
func (m *UpgradableMutex) SharedLock() (*SharedLockGuard, error) {
	g, _, err := m.c.sharedLockGuard(false)
	return g, err
}

// TrySharedLock is the non-blocking form of SharedLock.
func (m *UpgradableMutex) TrySharedLock() (*SharedLockGuard, bool, error) {
	return m.c.sharedLockGuard(true)
}

// SharedUnlock releases one level of the calling goroutine's shared lock.
func (m *UpgradableMutex) SharedUnlock() error { return m.c.sharedUnlock(goroutineid.Get()) }

// UpgradableSharedLock acquires the upgradable-shared lock, blocking while
// another goroutine holds the exclusive or upgradable-shared lock. Plain
// shared holders do not block it. It fails with ErrUpgradableAfterShared if
// the calling goroutine already holds a plain shared lock.
func (m *UpgradableMutex) UpgradableSharedLock() (*UpgradableSharedLockGuard, error) {
	g, _, err := m.c.upgradableLockGuard(false)
	return g, err
}

// TryUpgradableSharedLock is the non-blocking form of UpgradableSharedLock.
func (m *UpgradableMutex) TryUpgradableSharedLock() (*UpgradableSharedLockGuard, bool, error) {
	return m.c.upgradableLockGuard(true)
}

// UpgradableSharedUnlock releases one level of the calling goroutine's
// upgradable-shared lock.
func (m *UpgradableMutex) UpgradableSharedUnlock() error {
	return m.c.upgradableUnlock(goroutineid.Get())
}

// LockAndDo calls fn while holding the exclusive lock.
func (m *UpgradableMutex) LockAndDo(fn func() error) error { return m.c.lockAndDo(fn) }

// State returns a snapshot of the current ownership.
func (m *UpgradableMutex) State() State { return m.c.state() }
