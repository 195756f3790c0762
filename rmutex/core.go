package rmutex

import (
	"runtime"
	"sync"
	"time"
)

// spinLimit is the number of yields before a waiter backs off to sleeping.
const spinLimit = 1000

// core is the lock state shared by every mutex type. All fields are guarded
// by mu, which is only ever held for bookkeeping.
type core struct {
	shared   map[uint64]int
	owner    uint64
	depth    int
	upgrader uint64
	upDepth  int
	mu       sync.Mutex
	upgraded bool
}

// acquire runs attempt under the bookkeeping lock until it succeeds or
// faults. If try is set, only one attempt is made.
func (c *core) acquire(try bool, attempt func() (bool, error)) (bool, error) {
	for spin := 0; ; spin++ {
		c.mu.Lock()
		ok, err := attempt()
		c.mu.Unlock()
		if ok || err != nil || try {
			return ok, err
		}
		if spin > spinLimit {
			time.Sleep(100 * time.Microsecond)
		} else {
			runtime.Gosched()
		}
	}
}

// othersShared reports whether any goroutine other than gid holds a plain
// shared lock.
func (c *core) othersShared(gid uint64) bool {
	n := len(c.shared)
	if c.shared[gid] > 0 {
		n--
	}
	return n > 0
}

func (c *core) lock(gid uint64, try bool) (bool, error) {
	op := `Lock`
	if try {
		op = `TryLock`
	}
	return c.acquire(try, func() (bool, error) {
		if c.owner == gid {
			c.depth++
			return true, nil
		}
		if c.upgrader == gid {
			// upgrade: only other shared holders block
			if c.owner != 0 || c.othersShared(gid) {
				return false, nil
			}
			c.owner, c.depth, c.upgraded = gid, 1, true
			return true, nil
		}
		if c.shared[gid] > 0 {
			if try {
				return false, invalidOperation(op, ErrTryLockAfterShared)
			}
			return false, invalidOperation(op, ErrLockAfterShared)
		}
		if c.owner != 0 || len(c.shared) != 0 || c.upgrader != 0 {
			return false, nil
		}
		c.owner, c.depth = gid, 1
		return true, nil
	})
}

func (c *core) unlock(gid uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != gid || c.depth <= 0 {
		return invalidOperation(`Unlock`, ErrNotLocked)
	}
	c.depth--
	if c.depth == 0 {
		c.owner = 0
		c.upgraded = false
	}
	return nil
}

func (c *core) sharedLock(gid uint64, try bool) (bool, error) {
	op := `SharedLock`
	if try {
		op = `TrySharedLock`
	}
	return c.acquire(try, func() (bool, error) {
		if c.owner != gid {
			if c.upgrader == gid {
				return false, invalidOperation(op, ErrSharedAfterUpgradable)
			}
			if c.owner != 0 {
				return false, nil
			}
		}
		if c.shared == nil {
			c.shared = make(map[uint64]int)
		}
		c.shared[gid]++
		return true, nil
	})
}

func (c *core) sharedUnlock(gid uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.shared[gid]
	if n <= 0 {
		return invalidOperation(`SharedUnlock`, ErrNotLocked)
	}
	if n == 1 {
		delete(c.shared, gid)
	} else {
		c.shared[gid] = n - 1
	}
	return nil
}

func (c *core) upgradableLock(gid uint64, try bool) (bool, error) {
	op := `UpgradableSharedLock`
	if try {
		op = `TryUpgradableSharedLock`
	}
	return c.acquire(try, func() (bool, error) {
		if c.upgrader == gid {
			c.upDepth++
			return true, nil
		}
		if c.owner != gid {
			if c.shared[gid] > 0 {
				return false, invalidOperation(op, ErrUpgradableAfterShared)
			}
			if c.owner != 0 {
				return false, nil
			}
		}
		if c.upgrader != 0 {
			return false, nil
		}
		c.upgrader, c.upDepth = gid, 1
		return true, nil
	})
}

func (c *core) upgradableUnlock(gid uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upgrader != gid || c.upDepth <= 0 {
		return invalidOperation(`UpgradableSharedUnlock`, ErrNotLocked)
	}
	if c.upDepth == 1 && c.upgraded && c.owner == gid {
		return invalidOperation(`UpgradableSharedUnlock`, ErrUpgradeStillLocked)
	}
	c.upDepth--
	if c.upDepth == 0 {
		c.upgrader = 0
	}
	return nil
}

// State is a point-in-time snapshot of a lock's ownership, for diagnostics
// and tests.
type State struct {
	// Shared maps goroutine ID to plain shared depth.
	Shared          map[uint64]int
	Owner           uint64
	Depth           int
	Upgrader        uint64
	UpgradableDepth int
	Upgraded        bool
}

// Free reports whether no mode is held by any goroutine.
func (s State) Free() bool {
	return s.Owner == 0 && s.Depth == 0 && len(s.Shared) == 0 && s.Upgrader == 0 && s.UpgradableDepth == 0
}

func (c *core) state() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Owner:           c.owner,
		Depth:           c.depth,
		Upgrader:        c.upgrader,
		UpgradableDepth: c.upDepth,
		Upgraded:        c.upgraded,
	}
	if len(c.shared) != 0 {
		s.Shared = make(map[uint64]int, len(c.shared))
		for k, v := range c.shared {
			s.Shared[k] = v
		}
	}
	return s
}
