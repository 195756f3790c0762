package loop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// not stopped.
	ErrLoopAlreadyRunning = errors.New("loop: loop is already running")

	// ErrLoopNotRunning is returned when work is scheduled on a loop that is
	// not running.
	ErrLoopNotRunning = errors.New("loop: loop is not running")

	// ErrReentrantRun is returned when Run is called from within the loop.
	ErrReentrantRun = errors.New("loop: cannot call Run from within the loop")

	// ErrReentrantShutdown is returned when Shutdown is called from the loop
	// goroutine, which it would wait on forever. Use Stop instead.
	ErrReentrantShutdown = errors.New("loop: cannot call Shutdown from within the loop")

	// ErrInvalidDueTime is returned when a task is scheduled at NaN.
	ErrInvalidDueTime = errors.New("loop: task due time is NaN")

	// ErrModuleAlreadyBound is returned when a module is added to a loop
	// while it is bound to a loop.
	ErrModuleAlreadyBound = errors.New("loop: module is already bound to a loop")

	// ErrModuleNotBound is returned by module operations that require a loop.
	ErrModuleNotBound = errors.New("loop: module is not bound to a loop")
)

// PanicError wraps a value recovered from a panicking hook or task.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("loop: recovered panic: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// call calls fn, converting a panic into a PanicError.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn()
}
