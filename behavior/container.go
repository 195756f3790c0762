package behavior

import (
	"slices"
	"sync/atomic"

	"github.com/joeycumines/go-tickloop/rmutex"
)

// Container is an ordered set of behaviors, sorted by ascending priority then
// insertion order. The zero value is a stopped, empty, container.
type Container struct {
	_ [0]func()

	items []*Behavior
	mu    rmutex.SharedMutex

	// lock serializes Start, End and Update
	lock    rmutex.Contained
	running atomic.Bool

	frame rmutex.Shared[frame]
}

type frame struct {
	now  float64
	diff float64
}

// Add adds b, starting it if the container is running. It fails with
// ErrAlreadyContained if b belongs to any container.
func (c *Container) Add(b *Behavior) error {
	if err := b.acquire(c); err != nil {
		return err
	}
	if err := c.mu.LockAndDo(func() error {
		i := len(c.items)
		for i > 0 && c.items[i-1].priority > b.priority {
			i--
		}
		c.items = slices.Insert(c.items, i, b)
		return nil
	}); err != nil {
		b.release()
		return err
	}
	b.start(c)
	return nil
}

// Remove removes b, ending it if it was started. It returns false if b is
// not in the container.
func (c *Container) Remove(b *Behavior) bool {
	var found bool
	_ = c.mu.LockAndDo(func() error {
		if i := slices.Index(c.items, b); i >= 0 {
			c.items = slices.Delete(c.items, i, i+1)
			found = true
		}
		return nil
	})
	if found {
		b.end()
		b.release()
	}
	return found
}

// Len returns the number of behaviors.
func (c *Container) Len() int {
	return len(c.snapshot())
}

// Behaviors returns a copy of the behaviors, in order.
func (c *Container) Behaviors() []*Behavior { return c.snapshot() }

// IsRunning reports whether the container has been started, and not ended.
func (c *Container) IsRunning() bool { return c.running.Load() }

// Start starts the container, calling Start then, if active, OnActivate, for
// each behavior. It is a no-op if the container is running.
func (c *Container) Start() {
	c.do(func() {
		if c.running.Swap(true) {
			return
		}
		for _, b := range c.snapshot() {
			b.start(c)
		}
	})
}

// End ends the container, calling OnDeactivate if active, then End, for
// each behavior. It is a no-op if the container is not running.
func (c *Container) End() {
	c.do(func() {
		if !c.running.Swap(false) {
			return
		}
		for _, b := range c.snapshot() {
			b.end()
		}
	})
}

// Tick sets the frozen time, then calls Update.
func (c *Container) Tick(now, diff float64) {
	c.do(func() {
		c.frame.Set(frame{now: now, diff: diff})
		c.Update()
	})
}

// Update calls the Update hook of each running behavior, in order, if the
// container is running. Behaviors added by an Update hook are first updated
// on the following call.
func (c *Container) Update() {
	c.do(func() {
		if !c.running.Load() {
			return
		}
		for _, b := range c.snapshot() {
			b.update(c)
		}
	})
}

// Time returns the time set by the last Tick.
func (c *Container) Time() float64 { return c.frame.Get().now }

// TimeDiff returns the time difference set by the last Tick.
func (c *Container) TimeDiff() float64 { return c.frame.Get().diff }

// TimeFloat32 is Time as float32.
func (c *Container) TimeFloat32() float32 { return float32(c.Time()) }

// TimeDiffFloat32 is TimeDiff as float32.
func (c *Container) TimeDiffFloat32() float32 { return float32(c.TimeDiff()) }

func (c *Container) snapshot() (s []*Behavior) {
	g, err := c.mu.SharedLock()
	if err != nil {
		panic(err)
	}
	defer g.Unlock()
	return slices.Clone(c.items)
}

func (c *Container) do(fn func()) {
	if err := c.lock.LockAndDo(func() error {
		fn()
		return nil
	}); err != nil {
		panic(err)
	}
}
