package handledmutex

import (
	"github.com/joeycumines/go-tickloop/internal/goroutineid"
)

// LockGuard is an exclusive hold on a HandledMutex, released on behalf of
// the goroutine that acquired it. The zero value and nil are inert.
type LockGuard struct {
	m   *HandledMutex
	gid uint64
}

// GetLock calls Lock, returning a guard for the hold. The guard is inert if
// Lock returned false.
func (x *HandledMutex) GetLock() *LockGuard {
	gid := goroutineid.Get()
	if !x.lock(gid) {
		return &LockGuard{}
	}
	return &LockGuard{m: x, gid: gid}
}

// TryGetLock calls TryLock, returning a guard on success.
func (x *HandledMutex) TryGetLock() (*LockGuard, bool) {
	gid := goroutineid.Get()
	if !x.tryLock(gid) {
		return nil, false
	}
	return &LockGuard{m: x, gid: gid}, true
}

// Held reports whether the guard still holds the lock.
func (g *LockGuard) Held() bool { return g != nil && g.m != nil }

// Unlock releases the hold, if still held.
func (g *LockGuard) Unlock() {
	if g.Held() {
		m, gid := g.m, g.gid
		*g = LockGuard{}
		m.unlock(gid)
	}
}

// Assign releases the current hold of g, if any, then moves the hold of src
// into g, leaving src inert.
func (g *LockGuard) Assign(src *LockGuard) {
	if g == src {
		return
	}
	g.Unlock()
	if src != nil {
		*g, *src = *src, LockGuard{}
	}
}

// SharedLockGuard is a shared hold on a HandledMutex, released on behalf of
// the goroutine that acquired it. The zero value and nil are inert.
type SharedLockGuard struct {
	m   *HandledMutex
	gid uint64
}

// GetSharedLock calls LockShared, returning a guard for the hold. The guard
// is inert if LockShared returned false.
func (x *HandledMutex) GetSharedLock() *SharedLockGuard {
	gid := goroutineid.Get()
	if !x.lockShared(gid) {
		return &SharedLockGuard{}
	}
	return &SharedLockGuard{m: x, gid: gid}
}

// TryGetSharedLock calls TryLockShared, returning a guard on success.
func (x *HandledMutex) TryGetSharedLock() (*SharedLockGuard, bool) {
	gid := goroutineid.Get()
	if !x.tryLockShared(gid) {
		return nil, false
	}
	return &SharedLockGuard{m: x, gid: gid}, true
}

// Held reports whether the guard still holds the lock.
func (g *SharedLockGuard) Held() bool { return g != nil && g.m != nil }

// Unlock releases the hold, if still held.
func (g *SharedLockGuard) Unlock() {
	if g.Held() {
		m, gid := g.m, g.gid
		*g = SharedLockGuard{}
		m.unlockShared(gid)
	}
}

// Assign releases the current hold of g, if any, then moves the hold of src
// into g, leaving src inert.
func (g *SharedLockGuard) Assign(src *SharedLockGuard) {
	if g == src {
		return
	}
	g.Unlock()
	if src != nil {
		*g, *src = *src, SharedLockGuard{}
	}
}
