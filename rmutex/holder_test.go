package rmutex

import (
	"testing"
	"time"
)

const (
	blockedFor = 50 * time.Millisecond
	waitFor    = 5 * time.Second
)

// holder runs functions sequentially on one dedicated goroutine, so that lock
// ownership is stable across calls.
type holder struct {
	t    *testing.T
	cmds chan func()
}

func newHolder(t *testing.T) *holder {
	t.Helper()
	h := &holder{t: t, cmds: make(chan func())}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for fn := range h.cmds {
			fn()
		}
	}()
	t.Cleanup(func() {
		close(h.cmds)
		<-done
	})
	return h
}

// async runs fn on the holder's goroutine, without waiting for it.
func (h *holder) async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	select {
	case h.cmds <- func() { ch <- fn() }:
	case <-time.After(waitFor):
		h.t.Fatal(`holder busy`)
	}
	return ch
}

// do runs fn on the holder's goroutine, waiting for it.
func (h *holder) do(fn func() error) error {
	h.t.Helper()
	return requireDone(h.t, h.async(fn))
}

func requireDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitFor):
		t.Fatal(`timed out waiting for completion`)
		return nil
	}
}

func requireBlocked(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf(`expected blocked, completed with %v`, err)
	case <-time.After(blockedFor):
	}
}
