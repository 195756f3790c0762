// Package lockscript implements a small command language for exercising
// rmutex.UpgradableMutex from several goroutines, printing a timestamped line
// for every lock event.
//
// A session is a stream of whitespace separated tokens:
//
//	c              clear the pending threads
//	n <cmd>... d   define a new thread
//	s              start the pending threads, waiting for them to finish
//	q, e           quit
//
// Within a thread, "s <ms>" sleeps, and every other command takes a guard id:
//
//	l  u  sl su ul uu    lock and unlock, in each mode
//	tl tsl tul           try-lock, in each mode
//	g...                 any of the above, on a guard shared by all threads
//
// Guards are created on first use. Locking into a guard that is already held
// releases the previous hold. Local guards are released when their thread
// ends, global guards when every thread has ended.
package lockscript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode is a lock mode.
type Mode int

const (
	ModeExclusive Mode = iota
	ModeShared
	ModeUpgradable
)

func (m Mode) prefix() string {
	switch m {
	case ModeShared:
		return "shared-"
	case ModeUpgradable:
		return "upgradable-shared-"
	default:
		return ""
	}
}

// Command is a single step of a thread.
type Command struct {
	// Guard identifies the guard. It is empty for sleeps.
	Guard string
	// Sleep is the sleep duration, for sleeps.
	Sleep time.Duration
	Mode  Mode
	// Release is set for unlock commands.
	Release bool
	Try     bool
	Global  bool
}

// IsSleep reports whether the command is a sleep.
func (c Command) IsSleep() bool { return c.Guard == "" }

// ErrInvalidCommand is returned when parsing an unknown command.
var ErrInvalidCommand = errors.New("lockscript: invalid command")

// ParseCommand parses the command name, with its argument.
func ParseCommand(name, arg string) (Command, error) {
	if name == "s" {
		ms, err := strconv.ParseFloat(arg, 64)
		if err != nil || ms < 0 {
			return Command{}, fmt.Errorf("%w: sleep duration %q", ErrInvalidCommand, arg)
		}
		return Command{Sleep: time.Duration(ms * float64(time.Millisecond))}, nil
	}

	if arg == "" {
		return Command{}, fmt.Errorf("%w: %s: missing guard id", ErrInvalidCommand, name)
	}
	cmd := Command{Guard: arg}
	rest := name
	if s, ok := strings.CutPrefix(rest, "g"); ok {
		cmd.Global, rest = true, s
	}
	if s, ok := strings.CutPrefix(rest, "t"); ok {
		cmd.Try, rest = true, s
	}
	switch rest {
	case "l":
	case "u":
		cmd.Release = true
	case "sl":
		cmd.Mode = ModeShared
	case "su":
		cmd.Mode, cmd.Release = ModeShared, true
	case "ul":
		cmd.Mode = ModeUpgradable
	case "uu":
		cmd.Mode, cmd.Release = ModeUpgradable, true
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if cmd.Try && cmd.Release {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	return cmd, nil
}

// String returns the command in script form.
func (c Command) String() string {
	if c.IsSleep() {
		return "s " + strconv.FormatFloat(float64(c.Sleep)/float64(time.Millisecond), 'f', -1, 64)
	}
	var b strings.Builder
	if c.Global {
		b.WriteByte('g')
	}
	if c.Try {
		b.WriteByte('t')
	}
	switch c.Mode {
	case ModeShared:
		b.WriteByte('s')
	case ModeUpgradable:
		b.WriteByte('u')
	}
	if c.Release {
		b.WriteByte('u')
	} else {
		b.WriteByte('l')
	}
	b.WriteByte(' ')
	b.WriteString(c.Guard)
	return b.String()
}

// attempt names the operation, for exception lines.
func (c Command) attempt() string {
	s := c.Mode.prefix() + "lock"
	if c.Release {
		s = c.Mode.prefix() + "unlock"
	}
	if c.Try {
		s = "try-" + s
	}
	return s
}

// label returns the display name of the command's guard, for the thread id.
func (c Command) label(thread int) string {
	if c.Global {
		return "global-" + c.Mode.prefix() + c.Guard
	}
	return "local" + strconv.Itoa(thread) + "-" + c.Mode.prefix() + c.Guard
}
