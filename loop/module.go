package loop

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-tickloop/rmutex"
)

// ExecutionType determines how a module update or task is dispatched, within
// its group.
type ExecutionType int8

const (
	// SingleThreaded work waits for all outstanding BoundedAsync work in its
	// group, then runs on the loop goroutine.
	SingleThreaded ExecutionType = -1
	// BoundedAsync work runs on the loop's worker pool. The loop waits for it
	// before dispatching the next group.
	BoundedAsync ExecutionType = 0
	// FreeAsync work runs on a new goroutine, and is never waited for. Use it
	// for work that may block for longer than a tick.
	FreeAsync ExecutionType = 1
)

func (x ExecutionType) valid() bool { return x >= SingleThreaded && x <= FreeAsync }

func (x ExecutionType) String() string {
	switch x {
	case SingleThreaded:
		return "SingleThreaded"
	case BoundedAsync:
		return "BoundedAsync"
	case FreeAsync:
		return "FreeAsync"
	default:
		return fmt.Sprintf("ExecutionType(%d)", int8(x))
	}
}

// Hooks is the logic of a module.
//
// The hooks of one module never run concurrently with each other. They may
// call the methods of their own Module, including Enable and Disable, since
// the module's lock is recursive.
type Hooks interface {
	// OnStart is called when the loop starts, or when the module is added to
	// a running loop.
	OnStart()
	// OnEnable is called after OnStart if the module is enabled, and when a
	// started module is enabled.
	OnEnable()
	// OnUpdate is called each tick, while the module is started and enabled.
	OnUpdate() error
	// OnDisable is called before OnStop if the module is enabled, and when a
	// started module is disabled.
	OnDisable()
	// OnStop is called when the loop stops, or when the module is removed
	// from a running loop.
	OnStop()
}

// ExceptionHandler may be implemented by Hooks, to receive the errors
// returned from OnUpdate or from the module's tasks. Recovered panics are
// passed as PanicError.
type ExceptionHandler interface {
	OnException(err error)
}

// Task is scheduled work. A non-nil error, or a panic, is a fault.
type Task func() error

// Module binds Hooks to at most one Loop at a time. Modules are created
// unbound, with NewModule, and bound by adding them to a Loop's Modules.
type Module struct {
	_ [0]func()

	hooks Hooks
	loop  rmutex.Shared[*Loop]
	name  string

	// lock serializes hooks, and guards the lifecycle fields below
	lock rmutex.Contained

	enabled rmutex.Shared[bool]
	started bool
	// live is set between OnEnable and OnDisable
	live atomic.Bool
	// updating is set while a FreeAsync update is outstanding
	updating atomic.Bool

	executionType ExecutionType
	chunk         int8
}

// NewModule returns an unbound Module, wrapping hooks. It panics if hooks is
// nil.
func NewModule(hooks Hooks, opts ...ModuleOption) (*Module, error) {
	if hooks == nil {
		panic("loop: nil hooks")
	}
	cfg, err := resolveModuleOptions(opts)
	if err != nil {
		return nil, err
	}
	m := &Module{
		hooks:         hooks,
		name:          cfg.name,
		chunk:         cfg.chunk,
		executionType: cfg.executionType,
	}
	if m.name == "" {
		if v, ok := hooks.(interface{ Name() string }); ok {
			m.name = v.Name()
		}
	}
	m.enabled.Set(!cfg.disabled)
	return m, nil
}

// Name returns the module's name, which may be empty.
func (m *Module) Name() string { return m.name }

// Hooks returns the hooks the module was created with.
func (m *Module) Hooks() Hooks { return m.hooks }

// Chunk returns the module's execution chunk.
func (m *Module) Chunk() int8 { return m.chunk }

// ExecutionType returns how the module's update hook is dispatched.
func (m *Module) ExecutionType() ExecutionType { return m.executionType }

// Loop returns the loop the module is bound to, or nil.
func (m *Module) Loop() *Loop { return m.loop.Get() }

// IsEnabled reports whether the module is enabled. An enabled module is only
// updated while it is bound to a running loop, see IsRunning.
func (m *Module) IsEnabled() bool { return m.enabled.Get() }

// IsRunning reports whether the module is enabled and started, i.e. its
// update hook will be called.
func (m *Module) IsRunning() bool { return m.live.Load() }

// Enable enables the module. OnEnable is called immediately if the module is
// started, its loop is running, and it was not already enabled.
func (m *Module) Enable() {
	_ = m.lock.LockAndDo(func() error {
		if m.enabled.Swap(true) || !m.started {
			return nil
		}
		l := m.loop.Get()
		if l == nil || l.State() != StateRunning {
			return nil
		}
		m.live.Store(true)
		m.run(l, m.hooks.OnEnable)
		return nil
	})
}

// Disable disables the module. OnDisable is called immediately if the module
// is started, its loop is running, and it was enabled. While the loop is
// stopping, OnDisable is instead called as the module stops.
func (m *Module) Disable() {
	_ = m.lock.LockAndDo(func() error {
		m.enabled.Set(false)
		if !m.live.Load() {
			return nil
		}
		l := m.loop.Get()
		if l == nil || l.State() != StateRunning {
			return nil
		}
		m.live.Store(false)
		m.run(l, m.hooks.OnDisable)
		return nil
	})
}

// Time returns the bound loop's frozen time, see Loop.Time. It is 0 when
// unbound.
func (m *Module) Time() float64 {
	if l := m.loop.Get(); l != nil {
		return l.Time()
	}
	return 0
}

// TimeDiff returns the bound loop's frozen time difference, see
// Loop.TimeDiff. It is 0 when unbound.
func (m *Module) TimeDiff() float64 {
	if l := m.loop.Get(); l != nil {
		return l.TimeDiff()
	}
	return 0
}

// TimeFloat32 is Time as float32.
func (m *Module) TimeFloat32() float32 {
	if l := m.loop.Get(); l != nil {
		return l.TimeFloat32()
	}
	return 0
}

// TimeDiffFloat32 is TimeDiff as float32.
func (m *Module) TimeDiffFloat32() float32 {
	if l := m.loop.Get(); l != nil {
		return l.TimeDiffFloat32()
	}
	return 0
}

// ActualTime returns the unfrozen time since the bound loop started, see
// Loop.ActualTime. It is 0 when unbound.
func (m *Module) ActualTime() float64 {
	if l := m.loop.Get(); l != nil {
		return l.ActualTime()
	}
	return 0
}

// Schedule schedules task on the bound loop, see Loop.Schedule. Faults of
// the task are routed to this module.
func (m *Module) Schedule(task Task, at float64, et ExecutionType) error {
	l := m.loop.Get()
	if l == nil {
		return ErrModuleNotBound
	}
	return l.schedule(task, at, et, m)
}

func (m *Module) acquire(l *Loop) (err error) {
	m.loop.Update(func(current *Loop) *Loop {
		if current != nil {
			err = ErrModuleAlreadyBound
			return current
		}
		return l
	})
	return err
}

func (m *Module) release() { m.loop.Set(nil) }

// start calls the start hooks, if l is running and the module is bound to
// it, and not yet started.
func (m *Module) start(l *Loop) {
	_ = m.lock.LockAndDo(func() error {
		if m.started || m.loop.Get() != l || l.State() != StateRunning {
			return nil
		}
		m.started = true
		m.run(l, m.hooks.OnStart)
		if m.enabled.Get() {
			m.live.Store(true)
			m.run(l, m.hooks.OnEnable)
		}
		return nil
	})
}

func (m *Module) stop(l *Loop) {
	_ = m.lock.LockAndDo(func() error {
		if !m.started {
			return nil
		}
		if m.live.Load() {
			m.live.Store(false)
			m.run(l, m.hooks.OnDisable)
		}
		m.started = false
		m.run(l, m.hooks.OnStop)
		return nil
	})
}

// run calls a lifecycle hook, treating a panic as a fault.
func (m *Module) run(l *Loop, hook func()) {
	if err := call(func() error {
		hook()
		return nil
	}); err != nil {
		m.fault(l, err)
	}
}

// update calls OnUpdate, if the module is live on l, and l is running.
func (m *Module) update(l *Loop) {
	if l.State() != StateRunning {
		return
	}
	_ = m.lock.LockAndDo(func() error {
		if !m.live.Load() || m.loop.Get() != l || l.State() != StateRunning {
			return nil
		}
		if err := call(m.hooks.OnUpdate); err != nil {
			m.fault(l, err)
		}
		return nil
	})
}

// fault routes err to the module's ExceptionHandler. The caller must hold, or
// be able to acquire, the module's lock.
func (m *Module) fault(l *Loop, err error) {
	l.logFault(m, err)
	h, ok := m.hooks.(ExceptionHandler)
	if !ok {
		return
	}
	_ = m.lock.LockAndDo(func() error {
		if err := call(func() error {
			h.OnException(err)
			return nil
		}); err != nil {
			l.logger.Err().
				Err(err).
				Str("module", m.name).
				Log("loop: exception handler panicked")
		}
		return nil
	})
}
