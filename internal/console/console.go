// Package console implements an interactive driver for a loop.Loop, reading
// whitespace separated commands:
//
//	add NAME CHUNK   add a module that prints its lifecycle events
//	adp NAME CHUNK   add a SingleThreaded module that pauses each tick until
//	                 the next command
//	sch NAME TIME    schedule a BoundedAsync task printing NAME
//	scs NAME TIME    as sch, SingleThreaded
//	scf NAME TIME    as sch, FreeAsync
//	rem NAME         remove the first module named NAME
//	a NAME           enable the first module named NAME
//	d NAME           disable the first module named NAME
//	f                print the module names, in order
//	s                run the loop, in the background
//	e                stop the loop
//	q                quit
//
// Unknown commands are ignored.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-tickloop/loop"
)

// Console drives a loop from a command stream.
type Console struct {
	loop    *loop.Loop
	scanner *bufio.Scanner
	out     io.Writer

	// prompt modules wait for commands to change, while not busy
	commands atomic.Uint64
	busy     atomic.Bool
	quit     chan struct{}
	// runErr receives the result of each background run
	runErr chan error

	mu sync.Mutex
}

// New returns a Console driving l.
func New(l *loop.Loop, in io.Reader, out io.Writer) *Console {
	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	return &Console{
		loop:    l,
		scanner: sc,
		out:     out,
		quit:    make(chan struct{}),
		runErr:  make(chan error, 1),
	}
}

// Run processes commands until the input ends, the quit command, or ctx is
// done, then shuts the loop down. It may only be called once.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return c.shutdown(err)
		}
		cmd, ok := c.next()
		if !ok {
			return c.shutdown(c.scanner.Err())
		}
		if cmd == "q" {
			return c.shutdown(nil)
		}
		c.busy.Store(true)
		c.commands.Add(1)
		if err := c.exec(ctx, cmd); err != nil {
			c.printf("Exception: %v", err)
		}
		c.busy.Store(false)
	}
}

func (c *Console) shutdown(err error) error {
	close(c.quit)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e := c.loop.Shutdown(ctx); err == nil {
		err = e
	}
	return err
}

func (c *Console) exec(ctx context.Context, cmd string) error {
	switch cmd {
	case "add", "adp":
		name, _ := c.next()
		chunk, err := c.int8()
		if err != nil {
			return err
		}
		return c.add(name, chunk, cmd == "adp")

	case "sch", "scs", "scf":
		name, _ := c.next()
		at, err := c.float()
		if err != nil {
			return err
		}
		et := loop.BoundedAsync
		switch cmd {
		case "scs":
			et = loop.SingleThreaded
		case "scf":
			et = loop.FreeAsync
		}
		return c.loop.Schedule(func() error {
			c.printf("Executing the schedule: %s", name)
			return nil
		}, at, et)

	case "rem", "a", "d":
		name, _ := c.next()
		m, ok := c.loop.Modules().Find(func(m *loop.Module) bool { return m.Name() == name })
		if !ok {
			c.printf("Module with name '%s' doesn't exist.", name)
			return nil
		}
		switch cmd {
		case "rem":
			_, err := c.loop.Modules().Remove(m)
			return err
		case "a":
			m.Enable()
		default:
			m.Disable()
		}
		return nil

	case "f":
		return c.loop.Modules().ForEach(func(m *loop.Module) { c.printf("%s", m.Name()) })

	case "s":
		return c.start(ctx)

	case "e":
		c.loop.Stop()
		return nil
	}
	return nil
}

func (c *Console) add(name string, chunk int8, prompt bool) error {
	var (
		hooks loop.Hooks
		opts  = []loop.ModuleOption{loop.WithName(name), loop.WithChunk(chunk)}
	)
	if prompt {
		hooks = &promptModule{c: c, name: name}
		opts = append(opts, loop.WithExecutionType(loop.SingleThreaded))
	} else {
		hooks = &testModule{c: c, name: name}
	}
	m, err := loop.NewModule(hooks, opts...)
	if err != nil {
		return err
	}
	if h, ok := hooks.(interface{ bind(*loop.Module) }); ok {
		h.bind(m)
	}
	return c.loop.Modules().Add(m)
}

// start runs the loop in the background, returning once its modules have
// started, i.e. the first tick has begun.
func (c *Console) start(ctx context.Context) error {
	select {
	case err := <-c.runErr:
		// previous run
		if err != nil {
			c.printf("Exception: %v", err)
		}
	default:
	}
	if c.loop.State() != loop.StateStopped {
		return loop.ErrLoopAlreadyRunning
	}
	ticks := c.loop.TickCount()
	go func() { c.runErr <- c.loop.Run(ctx) }()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for c.loop.TickCount() == ticks {
		select {
		case err := <-c.runErr:
			if err == nil {
				// stopped before the first tick
				c.runErr <- nil
			}
			return err
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Console) next() (string, bool) {
	if !c.scanner.Scan() {
		return "", false
	}
	return c.scanner.Text(), true
}

func (c *Console) int8() (int8, error) {
	tok, _ := c.next()
	v, err := strconv.ParseInt(tok, 10, 8)
	return int8(v), err
}

func (c *Console) float() (float64, error) {
	tok, _ := c.next()
	return strconv.ParseFloat(tok, 64)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

// timed prints a line prefixed by the module's frozen time.
func (c *Console) timed(m *loop.Module, event, name string) {
	c.printf("%g, %g: %s: %s", m.Time(), m.TimeDiff(), event, name)
}
