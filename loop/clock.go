package loop

import (
	"time"

	"github.com/joeycumines/go-tickloop/handledmutex"
)

// clock is the loop's logical clock, advanced once per tick by the loop
// goroutine, and read concurrently by hooks.
type clock struct {
	anchor time.Time
	now    float64
	diff   float64
	now32  float32
	diff32 float32
	mu     handledmutex.HandledMutex
}

func (c *clock) reset() {
	g := c.mu.GetLock()
	defer g.Unlock()
	c.anchor = time.Now()
	c.now, c.diff, c.now32, c.diff32 = 0, 0, 0, 0
}

// advance freezes the time since reset, returning it.
func (c *clock) advance() float64 {
	g := c.mu.GetLock()
	defer g.Unlock()
	now := time.Since(c.anchor).Seconds()
	c.diff = now - c.now
	c.now = now
	c.now32, c.diff32 = float32(c.now), float32(c.diff)
	return now
}

func (c *clock) read() (now, diff float64, now32, diff32 float32) {
	g := c.mu.GetSharedLock()
	defer g.Unlock()
	return c.now, c.diff, c.now32, c.diff32
}

// actual returns the unfrozen time since reset.
func (c *clock) actual() float64 {
	g := c.mu.GetSharedLock()
	defer g.Unlock()
	if c.anchor.IsZero() {
		return 0
	}
	return time.Since(c.anchor).Seconds()
}
