package lockscript

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"
)

// Session reads a script, running each batch of threads as it is started.
type Session struct {
	tokens       *tokenizer
	out          io.Writer
	runner       *Runner
	threads      [][]Command
	defaultSleep time.Duration
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDefaultSleep sets the duration of a sleep command without a valid
// duration. Defaults to one second.
func WithDefaultSleep(d time.Duration) SessionOption {
	return func(s *Session) { s.defaultSleep = d }
}

// NewSession returns a Session reading from in, printing to out.
func NewSession(in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	s := &Session{
		tokens:       &tokenizer{sc: sc},
		out:          out,
		runner:       NewRunner(out),
		defaultSleep: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes commands until the input ends, a quit command, or ctx is
// done.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, ok := s.tokens.next()
		if !ok {
			return s.tokens.err()
		}
		switch tok {
		case "c":
			s.threads = nil
		case "n":
			s.threads = append(s.threads, s.readThread())
		case "s":
			if len(s.threads) == 0 {
				s.println("No threads to execute.")
				continue
			}
			if err := s.runner.Run(ctx, s.threads); err != nil {
				return err
			}
		case "q", "e":
			return nil
		default:
			s.println("Invalid input.")
		}
	}
}

// Threads returns the pending threads.
func (s *Session) Threads() [][]Command { return s.threads }

func (s *Session) readThread() (commands []Command) {
	for {
		tok, ok := s.tokens.next()
		if !ok {
			return commands
		}
		switch tok {
		case "d", "q", "e":
			return commands
		case "s":
			cmd := Command{Sleep: s.defaultSleep}
			if arg, ok := s.tokens.peek(); ok {
				if parsed, err := ParseCommand("s", arg); err == nil {
					s.tokens.next()
					cmd = parsed
				}
			}
			commands = append(commands, cmd)
			continue
		}
		if _, err := ParseCommand(tok, "_"); err != nil {
			s.println("Invalid input.")
			continue
		}
		arg, _ := s.tokens.next()
		cmd, err := ParseCommand(tok, arg)
		if err != nil {
			s.println("Invalid input.")
			continue
		}
		commands = append(commands, cmd)
	}
}

func (s *Session) println(line string) {
	s.runner.mu.Lock()
	defer s.runner.mu.Unlock()
	_, _ = io.WriteString(s.out, line+"\n")
}

type tokenizer struct {
	sc     *bufio.Scanner
	peeked *string
}

func (x *tokenizer) next() (string, bool) {
	if x.peeked != nil {
		tok := *x.peeked
		x.peeked = nil
		return tok, true
	}
	if !x.sc.Scan() {
		return "", false
	}
	return x.sc.Text(), true
}

func (x *tokenizer) peek() (string, bool) {
	if x.peeked != nil {
		return *x.peeked, true
	}
	if !x.sc.Scan() {
		return "", false
	}
	tok := x.sc.Text()
	x.peeked = &tok
	return tok, true
}

func (x *tokenizer) err() error {
	err := x.sc.Err()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// FormatThread returns commands in script form, as accepted by a session.
func FormatThread(commands []Command) string {
	b := []byte{'n'}
	for _, cmd := range commands {
		b = append(b, ' ')
		b = append(b, cmd.String()...)
	}
	b = append(b, " d"...)
	return string(b)
}
