package rmutex

// guard is a single hold of one mode, released on behalf of the goroutine
// that acquired it.
type guard struct {
	c       *core
	release func(c *core, gid uint64) error
	gid     uint64
}

func (g *guard) unlock() error {
	if g.c == nil {
		return nil
	}
	c, gid, release := g.c, g.gid, g.release
	*g = guard{}
	return release(c, gid)
}

// move releases the hold of g, if any, then takes over the hold of src.
func (g *guard) move(src *guard) error {
	if g == src {
		return nil
	}
	err := g.unlock()
	*g, *src = *src, guard{}
	return err
}

// LockGuard is an exclusive hold. The zero value and nil are inert.
//
// Typical use is:
//
//	g, err := m.Lock()
//	if err != nil {
//		return err
//	}
//	defer g.Unlock()
type LockGuard struct{ g guard }

// Unlock releases the hold, if still held. Subsequent calls are no-ops.
func (x *LockGuard) Unlock() error {
	if x == nil {
		return nil
	}
	return x.g.unlock()
}

// Held reports whether the guard still holds the lock.
func (x *LockGuard) Held() bool { return x != nil && x.g.c != nil }

// Assign releases the current hold of x, if any, then moves the hold of src
// into x, leaving src inert.
func (x *LockGuard) Assign(src *LockGuard) error {
	if src == nil {
		return x.Unlock()
	}
	return x.g.move(&src.g)
}

// SharedLockGuard is a plain shared hold. The zero value and nil are inert.
type SharedLockGuard struct{ g guard }

// Unlock releases the hold, if still held. Subsequent calls are no-ops.
func (x *SharedLockGuard) Unlock() error {
	if x == nil {
		return nil
	}
	return x.g.unlock()
}

// Held reports whether the guard still holds the lock.
func (x *SharedLockGuard) Held() bool { return x != nil && x.g.c != nil }

// Assign releases the current hold of x, if any, then moves the hold of src
// into x, leaving src inert.
func (x *SharedLockGuard) Assign(src *SharedLockGuard) error {
	if src == nil {
		return x.Unlock()
	}
	return x.g.move(&src.g)
}

// UpgradableSharedLockGuard is an upgradable-shared hold. The zero value and
// nil are inert.
type UpgradableSharedLockGuard struct{ g guard }

// Unlock releases the hold, if still held. It fails with
// ErrUpgradeStillLocked, and remains held, if the exclusive lock obtained by
// upgrading is still held.
func (x *UpgradableSharedLockGuard) Unlock() error {
	if x == nil || x.g.c == nil {
		return nil
	}
	if err := x.g.release(x.g.c, x.g.gid); err != nil {
		return err
	}
	x.g = guard{}
	return nil
}

// Held reports whether the guard still holds the lock.
func (x *UpgradableSharedLockGuard) Held() bool { return x != nil && x.g.c != nil }

// Assign releases the current hold of x, if any, then moves the hold of src
// into x, leaving src inert. If releasing fails, x and src are unchanged.
func (x *UpgradableSharedLockGuard) Assign(src *UpgradableSharedLockGuard) error {
	if src == nil {
		return x.Unlock()
	}
	if x == src {
		return nil
	}
	if err := x.Unlock(); err != nil {
		return err
	}
	x.g, src.g = src.g, guard{}
	return nil
}

func newLockGuard(c *core, gid uint64) *LockGuard {
	return &LockGuard{guard{c: c, gid: gid, release: (*core).unlock}}
}

func newSharedLockGuard(c *core, gid uint64) *SharedLockGuard {
	return &SharedLockGuard{guard{c: c, gid: gid, release: (*core).sharedUnlock}}
}

func newUpgradableSharedLockGuard(c *core, gid uint64) *UpgradableSharedLockGuard {
	return &UpgradableSharedLockGuard{guard{c: c, gid: gid, release: (*core).upgradableUnlock}}
}
