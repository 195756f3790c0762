package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "loop.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	names := make([]string, len(levels))
	for i, level := range levels {
		names[i] = level.String()
	}
	return names
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateLoop()...)
	errors = append(errors, c.validateLockTest()...)
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if _, ok := parseLevel(c.Logging.Level); !ok {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLoop() []ValidationError {
	var errors []ValidationError

	if c.Loop.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.workers",
			Value:   c.Loop.Workers,
			Message: "must be non-negative (0 uses GOMAXPROCS)",
		})
	}

	if c.Loop.TickIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.tick_interval_ms",
			Value:   c.Loop.TickIntervalMs,
			Message: "must be non-negative",
		})
	}

	rates := make(map[time.Duration]int, len(c.Loop.FaultLogRates))
	for _, k := range slices.Sorted(maps.Keys(c.Loop.FaultLogRates)) {
		n := c.Loop.FaultLogRates[k]
		field := "loop.fault_log_rates." + k
		d, err := time.ParseDuration(k)
		if err != nil || d <= 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   k,
				Message: "key must be a positive duration",
			})
			continue
		}
		if n <= 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   n,
				Message: "must be positive",
			})
			continue
		}
		if _, ok := rates[d]; ok {
			errors = append(errors, ValidationError{
				Field:   "loop.fault_log_rates",
				Value:   c.Loop.FaultLogRates,
				Message: fmt.Sprintf("window %s is specified more than once", d),
			})
			return errors
		}
		rates[d] = n
	}

	if err := checkRates(rates); err != nil {
		errors = append(errors, ValidationError{
			Field:   "loop.fault_log_rates",
			Value:   c.Loop.FaultLogRates,
			Message: err.Error(),
		})
	}

	return errors
}

func (c *Config) validateLockTest() []ValidationError {
	var errors []ValidationError

	if c.LockTest.DefaultSleepMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "locktest.default_sleep_ms",
			Value:   c.LockTest.DefaultSleepMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// checkRates validates rates using the limiter they configure, which panics
// on rates that are not monotonic.
func checkRates(rates map[time.Duration]int) (err error) {
	if len(rates) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("longer windows must allow more events, at a lower rate: %v", r)
		}
	}()
	catrate.NewLimiter(rates)
	return nil
}
