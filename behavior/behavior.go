package behavior

import (
	"errors"

	"github.com/joeycumines/go-tickloop/rmutex"
)

// ErrAlreadyContained is returned when a behavior is added to a container
// while it belongs to a container.
var ErrAlreadyContained = errors.New("behavior: behavior is already contained")

// Hooks is the logic of a behavior. The hooks of one behavior never run
// concurrently with each other.
type Hooks interface {
	// Start is called when the container starts, or when the behavior is
	// added to a running container.
	Start()
	// End is called when the container ends, or when the behavior is
	// removed from a running container.
	End()
	// OnActivate is called after Start if the behavior is active, and when a
	// started behavior is activated.
	OnActivate()
	// OnDeactivate is called before End if the behavior is active, and when
	// a started behavior is deactivated.
	OnDeactivate()
	// Update is called each update of the container, while the behavior is
	// started and active.
	Update()
}

// Behavior binds Hooks to at most one Container at a time.
type Behavior struct {
	_ [0]func()

	hooks     Hooks
	container rmutex.Shared[*Container]

	lock    rmutex.Contained
	active  bool
	started bool
	// live is set between OnActivate and OnDeactivate
	live bool

	priority int
}

// New returns an active, uncontained, Behavior. It panics if hooks is nil.
func New(hooks Hooks, priority int) *Behavior {
	if hooks == nil {
		panic("behavior: nil hooks")
	}
	return &Behavior{
		hooks:    hooks,
		priority: priority,
		active:   true,
	}
}

// Hooks returns the hooks the behavior was created with.
func (b *Behavior) Hooks() Hooks { return b.hooks }

// Priority returns the behavior's priority. Lower priorities are updated
// first.
func (b *Behavior) Priority() int { return b.priority }

// Container returns the behavior's container, or nil.
func (b *Behavior) Container() *Container { return b.container.Get() }

// Activate activates the behavior, calling OnActivate if it was inactive and
// its container is running.
func (b *Behavior) Activate() {
	b.do(func() {
		if b.active {
			return
		}
		b.active = true
		if b.started && b.containerRunning() {
			b.live = true
			b.hooks.OnActivate()
		}
	})
}

// Deactivate deactivates the behavior, calling OnDeactivate if it was active
// and its container is running. If the container is ending, OnDeactivate is
// called as the behavior ends.
func (b *Behavior) Deactivate() {
	b.do(func() {
		if !b.active {
			return
		}
		b.active = false
		// while the container is ending, end calls OnDeactivate
		if b.live && b.containerRunning() {
			b.live = false
			b.hooks.OnDeactivate()
		}
	})
}

// IsActive reports whether the behavior is active.
func (b *Behavior) IsActive() (active bool) {
	b.do(func() { active = b.active })
	return active
}

// IsRunning reports whether the behavior is active and contained by a
// running container.
func (b *Behavior) IsRunning() bool {
	c := b.container.Get()
	return c != nil && b.IsActive() && c.IsRunning()
}

// Time returns the container's frozen time, or 0 if uncontained.
func (b *Behavior) Time() float64 {
	if c := b.container.Get(); c != nil {
		return c.Time()
	}
	return 0
}

// TimeDiff returns the container's frozen time difference, or 0 if
// uncontained.
func (b *Behavior) TimeDiff() float64 {
	if c := b.container.Get(); c != nil {
		return c.TimeDiff()
	}
	return 0
}

// TimeFloat32 is Time as float32.
func (b *Behavior) TimeFloat32() float32 {
	if c := b.container.Get(); c != nil {
		return c.TimeFloat32()
	}
	return 0
}

// TimeDiffFloat32 is TimeDiff as float32.
func (b *Behavior) TimeDiffFloat32() float32 {
	if c := b.container.Get(); c != nil {
		return c.TimeDiffFloat32()
	}
	return 0
}

func (b *Behavior) acquire(c *Container) (err error) {
	b.container.Update(func(current *Container) *Container {
		if current != nil {
			err = ErrAlreadyContained
			return current
		}
		return c
	})
	return err
}

func (b *Behavior) release() { b.container.Set(nil) }

func (b *Behavior) containerRunning() bool {
	c := b.container.Get()
	return c != nil && c.IsRunning()
}

func (b *Behavior) start(c *Container) {
	b.do(func() {
		if b.started || b.container.Get() != c || !c.IsRunning() {
			return
		}
		b.started = true
		b.hooks.Start()
		if b.active {
			b.live = true
			b.hooks.OnActivate()
		}
	})
}

func (b *Behavior) end() {
	b.do(func() {
		if !b.started {
			return
		}
		if b.live {
			b.live = false
			b.hooks.OnDeactivate()
		}
		b.started = false
		b.hooks.End()
	})
}

func (b *Behavior) update(c *Container) {
	b.do(func() {
		if b.live && b.container.Get() == c {
			b.hooks.Update()
		}
	})
}

// do calls fn under the behavior's lock. Panics propagate, after unlocking.
func (b *Behavior) do(fn func()) {
	if err := b.lock.LockAndDo(func() error {
		fn()
		return nil
	}); err != nil {
		panic(err)
	}
}
