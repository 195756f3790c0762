package lockscript

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/joeycumines/go-tickloop/rmutex"
	"golang.org/x/sync/errgroup"
)

// Runner executes threads against a single rmutex.UpgradableMutex.
type Runner struct {
	out   io.Writer
	start time.Time
	mu    sync.Mutex
}

// NewRunner returns a Runner printing to out.
func NewRunner(out io.Writer) *Runner {
	return &Runner{out: out}
}

// Run runs each thread on its own goroutine, against a new mutex, returning
// once all have finished and the global guards are released. Sleeps end
// early if ctx is done, in which case ctx.Err() is returned, after the
// remaining commands are skipped. Run must not be called concurrently.
func (r *Runner) Run(ctx context.Context, threads [][]Command) error {
	var (
		mu      rmutex.UpgradableMutex
		globals = &globalGuards{}
	)
	r.start = time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for id, commands := range threads {
		g.Go(func() error {
			t := &thread{
				id:      id,
				r:       r,
				mu:      &mu,
				globals: globals,
			}
			return t.run(ctx, commands)
		})
	}
	err := g.Wait()

	_ = globals.LockAndDo(func() error {
		globals.guards.release()
		return nil
	})
	return err
}

func (r *Runner) printf(thread int, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := time.Since(r.start).Seconds()
	_, _ = fmt.Fprintf(r.out, "%.6f: thread-%d: %s\n", elapsed, thread, fmt.Sprintf(format, args...))
}

// guards holds named guards, per mode.
type guards struct {
	lock       map[string]*rmutex.LockGuard
	shared     map[string]*rmutex.SharedLockGuard
	upgradable map[string]*rmutex.UpgradableSharedLockGuard
}

// release unlocks every guard, exclusive first.
func (x *guards) release() {
	for _, g := range x.lock {
		_ = g.Unlock()
	}
	for _, g := range x.shared {
		_ = g.Unlock()
	}
	for _, g := range x.upgradable {
		_ = g.Unlock()
	}
	*x = guards{}
}

// store moves a newly acquired hold into the named guard, creating it if
// necessary, returning the error of releasing its previous hold.
func (x *guards) store(mode Mode, id string, lock *rmutex.LockGuard, shared *rmutex.SharedLockGuard, upgradable *rmutex.UpgradableSharedLockGuard) error {
	switch mode {
	case ModeShared:
		return getOrCreate(&x.shared, id).Assign(shared)
	case ModeUpgradable:
		return getOrCreate(&x.upgradable, id).Assign(upgradable)
	default:
		return getOrCreate(&x.lock, id).Assign(lock)
	}
}

// unlock releases the named guard, returning false if it does not exist.
func (x *guards) unlock(mode Mode, id string) (bool, error) {
	var (
		u  interface{ Unlock() error }
		ok bool
	)
	switch mode {
	case ModeShared:
		u, ok = x.shared[id]
	case ModeUpgradable:
		u, ok = x.upgradable[id]
	default:
		u, ok = x.lock[id]
	}
	if !ok {
		return false, nil
	}
	return true, u.Unlock()
}

func getOrCreate[G any](m *map[string]*G, id string) *G {
	if *m == nil {
		*m = make(map[string]*G)
	}
	g, ok := (*m)[id]
	if !ok {
		g = new(G)
		(*m)[id] = g
	}
	return g
}

// globalGuards are shared by all threads of a run.
type globalGuards struct {
	rmutex.Contained
	guards guards
}

type thread struct {
	r       *Runner
	mu      *rmutex.UpgradableMutex
	globals *globalGuards
	local   guards
	id      int
}

func (t *thread) run(ctx context.Context, commands []Command) error {
	defer func() {
		t.r.printf(t.id, "done, destroying all local guards...")
		t.local.release()
	}()
	for _, cmd := range commands {
		if cmd.IsSleep() {
			timer := time.NewTimer(cmd.Sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}
		t.exec(cmd)
	}
	return nil
}

func (t *thread) exec(cmd Command) {
	label := cmd.label(t.id)
	if cmd.Release {
		t.release(cmd, label)
		return
	}

	var (
		lock       *rmutex.LockGuard
		shared     *rmutex.SharedLockGuard
		upgradable *rmutex.UpgradableSharedLockGuard
		ok         = true
		err        error
	)
	switch cmd.Mode {
	case ModeShared:
		if cmd.Try {
			shared, ok, err = t.mu.TrySharedLock()
		} else {
			shared, err = t.mu.SharedLock()
		}
	case ModeUpgradable:
		if cmd.Try {
			upgradable, ok, err = t.mu.TryUpgradableSharedLock()
		} else {
			upgradable, err = t.mu.UpgradableSharedLock()
		}
	default:
		if cmd.Try {
			lock, ok, err = t.mu.TryLock()
		} else {
			lock, err = t.mu.Lock()
		}
	}
	if err != nil {
		t.r.printf(t.id, "exception on %s attempt, %s: %v", cmd.attempt(), label, err)
		return
	}
	if !ok {
		t.r.printf(t.id, "%s failed: %s", cmd.attempt(), label)
		return
	}

	if err := t.store(cmd, lock, shared, upgradable); err != nil {
		// the previous hold is kept, drop the new one
		_ = lock.Unlock()
		_ = shared.Unlock()
		_ = upgradable.Unlock()
		t.r.printf(t.id, "exception on %s attempt, %s: %v", cmd.attempt(), label, err)
		return
	}

	switch {
	case cmd.Try:
		t.r.printf(t.id, "%s successful: %s", cmd.attempt(), label)
	case cmd.Mode == ModeShared:
		t.r.printf(t.id, "shared-locked: %s", label)
	case cmd.Mode == ModeUpgradable:
		t.r.printf(t.id, "upgradable-shared-lock: %s", label)
	default:
		t.r.printf(t.id, "locked: %s", label)
	}
}

func (t *thread) store(cmd Command, lock *rmutex.LockGuard, shared *rmutex.SharedLockGuard, upgradable *rmutex.UpgradableSharedLockGuard) error {
	if !cmd.Global {
		return t.local.store(cmd.Mode, cmd.Guard, lock, shared, upgradable)
	}
	return t.globals.LockAndDo(func() error {
		return t.globals.guards.store(cmd.Mode, cmd.Guard, lock, shared, upgradable)
	})
}

func (t *thread) release(cmd Command, label string) {
	var (
		found bool
		err   error
	)
	if cmd.Global {
		_ = t.globals.LockAndDo(func() error {
			found, err = t.globals.guards.unlock(cmd.Mode, cmd.Guard)
			return nil
		})
	} else {
		found, err = t.local.unlock(cmd.Mode, cmd.Guard)
	}
	switch {
	case !found:
		t.r.printf(t.id, "exception on %s attempt, %s: guard not found", cmd.attempt(), label)
		t.r.printf(t.id, "hint: guards are created when you acquire them, e.g. with %s", Command{Guard: cmd.Guard, Mode: cmd.Mode, Global: cmd.Global})
	case err != nil:
		t.r.printf(t.id, "exception on %s attempt, %s: %v", cmd.attempt(), label, err)
	default:
		t.r.printf(t.id, "%s: %s", releaseEvent(cmd.Mode), label)
	}
}

func releaseEvent(mode Mode) string {
	switch mode {
	case ModeShared:
		return "shared-unlocked"
	case ModeUpgradable:
		return "upgradable-shared-unlocked"
	default:
		return "unlocked"
	}
}
