// Package handledmutex provides HandledMutex, a read/write mutex that tracks
// which goroutines hold it.
//
// Unlike the locks in package rmutex, HandledMutex is not recursive: repeated
// acquisition of a held mode reports false rather than nesting. A goroutine
// holding the shared lock may upgrade in place, by calling Lock, once it is
// the only shared holder. Releasing the exclusive lock falls back to shared
// standing, for goroutines that were in the shared set.
package handledmutex

import (
	"runtime"
	"sync"
	"time"

	"github.com/joeycumines/go-tickloop/internal/goroutineid"
)

// HandledMutex is a goroutine-tracked read/write mutex. The zero value is
// unlocked. A HandledMutex must not be copied after first use.
type HandledMutex struct {
	_ [0]func()

	shared map[uint64]struct{}
	owner  uint64

	// rw is the actual hold, mu guards the ownership metadata. Operations on
	// rw that are made under mu never block, since every writer is recorded
	// under mu first.
	rw sync.RWMutex
	mu sync.Mutex
}

// wait blocks until cond returns false, yielding between checks. cond is
// evaluated with mu held, which remains held on return.
func (x *HandledMutex) wait(cond func() bool) {
	for spin := 0; cond(); spin++ {
		x.mu.Unlock()
		if spin > 1000 {
			time.Sleep(100 * time.Microsecond)
		} else {
			runtime.Gosched()
		}
		x.mu.Lock()
	}
}

func (x *HandledMutex) isShared(gid uint64) bool {
	_, ok := x.shared[gid]
	return ok
}

// Lock acquires the exclusive lock, and returns false (without blocking) if
// the calling goroutine already holds it. A shared holder may call Lock, it
// waits until it is the only shared holder.
func (x *HandledMutex) Lock() bool { return x.lock(goroutineid.Get()) }

func (x *HandledMutex) lock(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.owner == gid {
		return false
	}
	isShared := x.isShared(gid)
	var self int
	if isShared {
		self = 1
	}
	x.wait(func() bool { return x.owner != 0 || len(x.shared) > self })
	if isShared {
		x.rw.RUnlock()
	}
	x.rw.Lock()
	x.owner = gid
	return true
}

// TryLock makes a single attempt to acquire the exclusive lock. Unlike Lock,
// it never upgrades a shared hold.
func (x *HandledMutex) TryLock() bool { return x.tryLock(goroutineid.Get()) }

func (x *HandledMutex) tryLock(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.rw.TryLock() {
		return false
	}
	x.owner = gid
	return true
}

// Unlock releases the exclusive lock, returning false if the calling
// goroutine does not hold it. A goroutine that is also a shared holder keeps
// its shared standing.
func (x *HandledMutex) Unlock() bool { return x.unlock(goroutineid.Get()) }

func (x *HandledMutex) unlock(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.owner == 0 || x.owner != gid {
		return false
	}
	x.rw.Unlock()
	if x.isShared(gid) {
		x.rw.RLock()
	}
	x.owner = 0
	return true
}

// LockShared acquires the shared lock, waiting while another goroutine holds
// the exclusive lock. It returns false if the calling goroutine is already a
// shared holder. The exclusive owner is recorded as a shared holder without
// further locking.
func (x *HandledMutex) LockShared() bool { return x.lockShared(goroutineid.Get()) }

func (x *HandledMutex) lockShared(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isShared(gid) {
		return false
	}
	if x.owner != gid {
		x.wait(func() bool { return x.owner != 0 })
		x.rw.RLock()
	}
	x.addShared(gid)
	return true
}

// TryLockShared makes a single attempt to acquire the shared lock.
func (x *HandledMutex) TryLockShared() bool { return x.tryLockShared(goroutineid.Get()) }

func (x *HandledMutex) tryLockShared(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isShared(gid) || !x.rw.TryRLock() {
		return false
	}
	x.addShared(gid)
	return true
}

// UnlockShared releases the shared lock, returning false if the calling
// goroutine is not a shared holder.
func (x *HandledMutex) UnlockShared() bool { return x.unlockShared(goroutineid.Get()) }

func (x *HandledMutex) unlockShared(gid uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.isShared(gid) {
		return false
	}
	if x.owner != gid {
		x.rw.RUnlock()
	}
	delete(x.shared, gid)
	return true
}

func (x *HandledMutex) addShared(gid uint64) {
	if x.shared == nil {
		x.shared = make(map[uint64]struct{})
	}
	x.shared[gid] = struct{}{}
}

// Owned reports whether the calling goroutine holds the exclusive lock.
func (x *HandledMutex) Owned() bool {
	gid := goroutineid.Get()
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.owner == gid
}

// SharedCount returns the number of goroutines in the shared set.
func (x *HandledMutex) SharedCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.shared)
}
