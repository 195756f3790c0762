package loop

import (
	"github.com/joeycumines/logiface"
)

// logFault logs a fault from m, or from a task without an owner if m is nil.
// Logging is rate limited per module, see WithFaultLogRate.
func (l *Loop) logFault(m *Module, err error) {
	if l.metrics != nil {
		l.metrics.faults.Add(1)
	}
	if l.faultLimiter != nil {
		var category any = l
		if m != nil {
			category = m
		}
		if _, ok := l.faultLimiter.Allow(category); !ok {
			return
		}
	}

	level := logiface.LevelWarning
	if m != nil {
		if _, ok := m.hooks.(ExceptionHandler); ok {
			level = logiface.LevelDebug
		}
	}
	b := l.logger.Build(level).
		Err(err).
		Uint64("loop", l.id)
	if m != nil {
		b = b.Str("module", m.name).
			Int("chunk", int(m.chunk))
	}
	b.Log("loop: fault")
}
