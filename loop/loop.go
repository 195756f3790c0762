package loop

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-tickloop/internal/goroutineid"
	"github.com/joeycumines/logiface"
	"github.com/sourcegraph/conc/pool"
)

var loopIDCounter atomic.Uint64

// Loop is a cooperative update scheduler, see the package documentation.
// Loops must be created using New.
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger        *logiface.Logger[logiface.Event]
	faultLimiter  *catrate.Limiter
	metrics       *metrics
	modules       Modules
	tasks         taskQueue
	clock         clock
	state         fastState
	loopGoroutine atomic.Uint64

	// runMu guards the transitions into and out of StateRunning, along with
	// the per-run channels
	runMu  sync.Mutex
	stopCh chan struct{}
	done   chan struct{}

	tickCount    atomic.Uint64
	id           uint64
	workers      int
	tickInterval time.Duration
}

// New creates a new, stopped, Loop.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		id:           loopIDCounter.Add(1),
		logger:       cfg.logger,
		workers:      cfg.workers,
		tickInterval: cfg.tickInterval,
		done:         make(chan struct{}),
	}
	close(l.done)
	l.modules.loop = l
	if cfg.metricsEnabled {
		l.metrics = new(metrics)
	}
	if len(cfg.faultLogRates) != 0 {
		if l.faultLimiter, err = newFaultLimiter(cfg.faultLogRates); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func newFaultLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: invalid fault log rate: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// Modules returns the loop's module collection.
func (l *Loop) Modules() *Modules { return &l.modules }

// ID returns a process-unique identifier for the loop.
func (l *Loop) ID() uint64 { return l.id }

// State returns the current state of the loop.
func (l *Loop) State() State { return l.state.Load() }

// IsRunning reports whether the loop is in StateRunning.
func (l *Loop) IsRunning() bool { return l.state.Load() == StateRunning }

// TickCount returns the number of ticks started, over all runs.
func (l *Loop) TickCount() uint64 { return l.tickCount.Load() }

// Done returns a channel that is closed once the current run, if any, has
// fully stopped. It is closed while the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.done
}

// Run starts every module, then ticks until the loop is stopped, via Stop,
// Shutdown, or ctx. It then stops every module and drops any pending tasks,
// before returning. If the loop stopped due to ctx, ctx.Err() is returned.
//
// A loop may be run again once Run has returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopGoroutine() {
		return ErrReentrantRun
	}

	l.runMu.Lock()
	if !l.state.TryTransition(StateStopped, StateRunning) {
		l.runMu.Unlock()
		return ErrLoopAlreadyRunning
	}
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	stopCh, done := l.stopCh, l.done
	l.runMu.Unlock()

	l.loopGoroutine.Store(goroutineid.Get())
	defer func() {
		l.loopGoroutine.Store(0)
		l.runMu.Lock()
		l.state.Store(StateStopped)
		close(done)
		l.runMu.Unlock()
	}()

	// anything scheduled after the previous run quiesced is dropped
	l.tasks.clear()
	l.clock.reset()

	l.logger.Debug().
		Uint64("loop", l.id).
		Int("modules", l.modules.Len()).
		Log("loop: starting")

	for _, m := range l.modules.Snapshot() {
		m.start(l)
	}

	err := l.run(ctx, stopCh)
	l.quiesce()

	l.logger.Debug().
		Uint64("loop", l.id).
		Uint64("ticks", l.tickCount.Load()).
		Log("loop: stopped")

	return err
}

func (l *Loop) run(ctx context.Context, stopCh <-chan struct{}) error {
	var timer *time.Timer
	if l.tickInterval > 0 {
		timer = time.NewTimer(0)
		defer timer.Stop()
	}
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		default:
		}

		if timer == nil {
			l.tick()
			runtime.Gosched()
			continue
		}

		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-timer.C:
		}
		start := time.Now()
		l.tick()
		timer.Reset(max(0, l.tickInterval-time.Since(start)))
	}
}

// quiesce stops the modules then drops pending tasks. It is called with the
// loop in StateStopping, so no module may start concurrently.
func (l *Loop) quiesce() {
	for _, m := range l.modules.Snapshot() {
		m.stop(l)
	}
	if n := l.tasks.clear(); n != 0 {
		if l.metrics != nil {
			l.metrics.dropped.Add(uint64(n))
		}
		l.logger.Debug().
			Uint64("loop", l.id).
			Int("tasks", n).
			Log("loop: dropped pending tasks")
	}
}

// Stop requests the loop stop, without waiting. Updates already running
// complete first, but no further updates start. It is safe to call from
// hooks, and is a no-op unless the loop is running.
func (l *Loop) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.state.TryTransition(StateRunning, StateStopping) {
		close(l.stopCh)
	}
}

// Shutdown calls Stop, then waits for the loop to fully stop, or ctx to be
// done. It must not be called from the loop goroutine or from a hook, use
// Stop instead.
func (l *Loop) Shutdown(ctx context.Context) error {
	if l.isLoopGoroutine() {
		return ErrReentrantShutdown
	}
	l.Stop()
	select {
	case <-l.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule schedules task to run at or after the loop's time at, with the
// given execution type. Tasks run in a group immediately before chunk 0, in
// order of due time then insertion. A due time at or before the current time
// means the next tick. A NaN due time is rejected with ErrInvalidDueTime.
// Pending tasks are dropped when the loop stops.
//
// Faults of tasks scheduled via this method are logged, see Module.Schedule
// for tasks with an owner.
func (l *Loop) Schedule(task Task, at float64, et ExecutionType) error {
	return l.schedule(task, at, et, nil)
}

func (l *Loop) schedule(task Task, at float64, et ExecutionType, owner *Module) error {
	if task == nil {
		panic("loop: nil task")
	}
	if !et.valid() {
		panic("loop: invalid execution type")
	}
	if math.IsNaN(at) {
		return ErrInvalidDueTime
	}
	if l.state.Load() != StateRunning {
		return ErrLoopNotRunning
	}
	l.tasks.push(&scheduledTask{
		fn:    task,
		owner: owner,
		due:   at,
		et:    et,
	})
	return nil
}

// Time returns the time, in seconds, from the start of the current (or last)
// run to the start of the current tick. It is unchanged for the duration of
// a tick.
func (l *Loop) Time() float64 {
	now, _, _, _ := l.clock.read()
	return now
}

// TimeDiff returns the difference between the Time of the current tick and
// the previous one.
func (l *Loop) TimeDiff() float64 {
	_, diff, _, _ := l.clock.read()
	return diff
}

// TimeFloat32 is Time as float32.
func (l *Loop) TimeFloat32() float32 {
	_, _, now, _ := l.clock.read()
	return now
}

// TimeDiffFloat32 is TimeDiff as float32.
func (l *Loop) TimeDiffFloat32() float32 {
	_, _, _, diff := l.clock.read()
	return diff
}

// ActualTime returns the time, in seconds, since the start of the current (or
// last) run, without freezing. Prefer Time.
func (l *Loop) ActualTime() float64 { return l.clock.actual() }

// Metrics returns a snapshot of the loop's metrics. It returns the zero value
// unless WithMetrics was enabled.
func (l *Loop) Metrics() Metrics {
	if l.metrics == nil {
		return Metrics{}
	}
	return Metrics{
		TickLatency:  l.metrics.latency.snapshot(),
		Ticks:        l.metrics.ticks.Load(),
		Tasks:        l.metrics.tasks.Load(),
		Faults:       l.metrics.faults.Load(),
		DroppedTasks: l.metrics.dropped.Load(),
		Pending:      l.tasks.len(),
	}
}

// tick is a single iteration of the loop.
func (l *Loop) tick() {
	start := time.Now()
	l.tickCount.Add(1)

	now := l.clock.advance()
	tasks := l.tasks.popDue(now)
	modules := l.modules.Snapshot()

	d := dispatcher{l: l}
	// negative chunks, then tasks, then the rest
	i := 0
	for i < len(modules) && modules[i].chunk < 0 {
		i = d.modules(modules, i)
	}
	if len(tasks) != 0 {
		for _, t := range tasks {
			d.dispatch(t.et, func() { l.runTask(t) })
		}
		d.barrier()
		if l.metrics != nil {
			l.metrics.tasks.Add(uint64(len(tasks)))
		}
	}
	for i < len(modules) {
		i = d.modules(modules, i)
	}

	if l.metrics != nil {
		l.metrics.ticks.Add(1)
		l.metrics.latency.record(time.Since(start))
	}
}

func (l *Loop) runTask(t *scheduledTask) {
	err := call(t.fn)
	if err == nil {
		return
	}
	if t.owner != nil {
		t.owner.fault(l, err)
	} else {
		l.logFault(nil, err)
	}
}

func (l *Loop) isLoopGoroutine() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && id == goroutineid.Get()
}

// dispatcher runs the groups of a single tick.
type dispatcher struct {
	l    *Loop
	pool *pool.Pool
}

// modules dispatches the group of modules starting at i, returning the index
// of the next group.
func (d *dispatcher) modules(modules []*Module, i int) int {
	chunk := modules[i].chunk
	for ; i < len(modules) && modules[i].chunk == chunk; i++ {
		m := modules[i]
		if !m.IsRunning() {
			continue
		}
		if m.executionType == FreeAsync {
			// at most one outstanding update per module
			if !m.updating.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer m.updating.Store(false)
				m.update(d.l)
			}()
			continue
		}
		d.dispatch(m.executionType, func() { m.update(d.l) })
	}
	d.barrier()
	return i
}

func (d *dispatcher) dispatch(et ExecutionType, fn func()) {
	switch et {
	case SingleThreaded:
		d.barrier()
		fn()
	case FreeAsync:
		go fn()
	default:
		if d.pool == nil {
			d.pool = pool.New().WithMaxGoroutines(d.l.workers)
		}
		d.pool.Go(fn)
	}
}

// barrier waits for all outstanding BoundedAsync work.
func (d *dispatcher) barrier() {
	if d.pool != nil {
		d.pool.Wait()
		d.pool = nil
	}
}
