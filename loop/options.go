package loop

import (
	"errors"
	"runtime"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	faultLogRates  map[time.Duration]int
	workers        int
	tickInterval   time.Duration
	metricsEnabled bool
}

// --- Loop Options ---

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithLogger configures the logger used for loop lifecycle events and for
// faults not handled by a module. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWorkers sets the maximum number of goroutines used to run
// BoundedAsync work, within a single group. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n < 1 {
			return errors.New("loop: workers must be at least 1")
		}
		opts.workers = n
		return nil
	}}
}

// WithTickInterval sets the minimum duration between the start of
// consecutive ticks. The default, 0, ticks continuously, yielding the
// processor between ticks.
func WithTickInterval(d time.Duration) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if d < 0 {
			return errors.New("loop: tick interval must not be negative")
		}
		opts.tickInterval = d
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see Loop.Metrics.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithFaultLogRate limits how often faults are logged, per module, using
// the same rate format as catrate.NewLimiter. A nil or empty map disables
// the limit. Invalid rates cause New to fail.
func WithFaultLogRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.faultLogRates = rates
		return nil
	}}
}

// defaultFaultLogRates applies unless WithFaultLogRate is used.
var defaultFaultLogRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// resolveOptions applies Option instances to loopOptions.
func resolveOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		workers:       runtime.GOMAXPROCS(0),
		faultLogRates: defaultFaultLogRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Module Options ---

// moduleOptions holds configuration options for Module creation.
type moduleOptions struct {
	name          string
	chunk         int8
	executionType ExecutionType
	disabled      bool
}

// ModuleOption configures a Module instance.
type ModuleOption interface {
	applyModule(*moduleOptions) error
}

type moduleOptionImpl struct {
	applyModuleFunc func(*moduleOptions) error
}

func (o *moduleOptionImpl) applyModule(opts *moduleOptions) error {
	return o.applyModuleFunc(opts)
}

// WithChunk sets the module's execution chunk. Lower chunks are dispatched
// first, each tick. Defaults to 0.
func WithChunk(chunk int8) ModuleOption {
	return &moduleOptionImpl{func(opts *moduleOptions) error {
		opts.chunk = chunk
		return nil
	}}
}

// WithExecutionType sets how the module's update hook is dispatched.
// Defaults to BoundedAsync.
func WithExecutionType(et ExecutionType) ModuleOption {
	return &moduleOptionImpl{func(opts *moduleOptions) error {
		if !et.valid() {
			return errors.New("loop: invalid execution type")
		}
		opts.executionType = et
		return nil
	}}
}

// WithName sets the module's name, overriding any Name method of its hooks.
func WithName(name string) ModuleOption {
	return &moduleOptionImpl{func(opts *moduleOptions) error {
		opts.name = name
		return nil
	}}
}

// WithEnabled sets whether the module is initially enabled. Defaults to
// true.
func WithEnabled(enabled bool) ModuleOption {
	return &moduleOptionImpl{func(opts *moduleOptions) error {
		opts.disabled = !enabled
		return nil
	}}
}

func resolveModuleOptions(opts []ModuleOption) (*moduleOptions, error) {
	cfg := &moduleOptions{executionType: BoundedAsync}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyModule(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
