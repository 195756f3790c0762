package loop

import (
	"slices"

	"github.com/joeycumines/go-tickloop/rmutex"
)

// Modules is the ordered collection of a Loop's modules, sorted by ascending
// execution chunk, then insertion order. It is safe for concurrent use,
// including from within hooks.
//
// Lifecycle hooks are never called while the collection's lock is held, and
// ticks dispatch from a snapshot, so hooks may freely add or remove modules.
// ForEach is the exception: fn runs under the shared lock, so it must not
// mutate the collection, see rmutex.ErrLockAfterShared.
type Modules struct {
	loop  *Loop
	items []*Module
	mu    rmutex.SharedMutex
}

// Add binds m to the loop, inserts it, then starts it if the loop is
// running. It fails with ErrModuleAlreadyBound if m is bound to any loop.
func (x *Modules) Add(m *Module) error {
	if err := m.acquire(x.loop); err != nil {
		return err
	}
	if err := x.mu.LockAndDo(func() error {
		i := len(x.items)
		for i > 0 && x.items[i-1].chunk > m.chunk {
			i--
		}
		x.items = slices.Insert(x.items, i, m)
		return nil
	}); err != nil {
		m.release()
		return err
	}
	m.start(x.loop)
	return nil
}

// Remove removes m, stopping it if it was started, then unbinds it. It
// returns false if m is not in the collection.
func (x *Modules) Remove(m *Module) (bool, error) {
	var found bool
	if err := x.mu.LockAndDo(func() error {
		if i := slices.Index(x.items, m); i >= 0 {
			x.items = slices.Delete(x.items, i, i+1)
			found = true
		}
		return nil
	}); err != nil || !found {
		return false, err
	}
	x.finish(m)
	return true, nil
}

// RemoveFunc removes every module for which pred returns true, as per
// Remove, returning the number removed.
func (x *Modules) RemoveFunc(pred func(m *Module) bool) (int, error) {
	var removed []*Module
	if err := x.mu.LockAndDo(func() error {
		x.items = slices.DeleteFunc(x.items, func(m *Module) bool {
			if pred(m) {
				removed = append(removed, m)
				return true
			}
			return false
		})
		return nil
	}); err != nil {
		return 0, err
	}
	for _, m := range removed {
		x.finish(m)
	}
	return len(removed), nil
}

func (x *Modules) finish(m *Module) {
	m.stop(x.loop)
	m.release()
}

// Find returns the first module, in order, for which pred returns true.
func (x *Modules) Find(pred func(m *Module) bool) (*Module, bool) {
	for _, m := range x.Snapshot() {
		if pred(m) {
			return m, true
		}
	}
	return nil, false
}

// ForEach calls fn for each module, in order, holding the shared lock.
func (x *Modules) ForEach(fn func(m *Module)) error {
	return x.read(func() {
		for _, m := range x.items {
			fn(m)
		}
	})
}

// Len returns the number of modules.
func (x *Modules) Len() (n int) {
	_ = x.read(func() { n = len(x.items) })
	return n
}

// Snapshot returns a copy of the modules, in order.
func (x *Modules) Snapshot() (s []*Module) {
	_ = x.read(func() { s = slices.Clone(x.items) })
	return s
}

func (x *Modules) read(fn func()) error {
	g, err := x.mu.SharedLock()
	if err != nil {
		return err
	}
	defer g.Unlock()
	fn()
	return nil
}
