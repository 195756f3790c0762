package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-tickloop/loop"
	"github.com/joeycumines/logiface"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, logiface.LevelInformational, cfg.Logging.LogLevel())
	assert.Zero(t, cfg.Loop.TickInterval())
	assert.Equal(t, map[time.Duration]int{time.Second: 5, time.Minute: 60}, cfg.Loop.FaultLogRateMap())
	assert.Equal(t, time.Second, cfg.LockTest.DefaultSleep())
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := load(t, ``)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_overrides(t *testing.T) {
	cfg, err := load(t, `
logging:
  level: debug
  timestamps: false
loop:
  workers: 3
  tick_interval_ms: 16
  metrics: false
locktest:
  default_sleep_ms: 10
`)
	require.NoError(t, err)
	assert.Equal(t, logiface.LevelDebug, cfg.Logging.LogLevel())
	assert.False(t, cfg.Logging.Timestamps)
	assert.Equal(t, 3, cfg.Loop.Workers)
	assert.Equal(t, 16*time.Millisecond, cfg.Loop.TickInterval())
	assert.False(t, cfg.Loop.Metrics)
	assert.Equal(t, 10*time.Millisecond, cfg.LockTest.DefaultSleep())
}

func TestLoad_invalid(t *testing.T) {
	_, err := load(t, `
logging:
  level: verbose
loop:
  workers: -1
  tick_interval_ms: -5
locktest:
  default_sleep_ms: -1
`)
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs), err)
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{
		`logging.level`,
		`loop.workers`,
		`loop.tick_interval_ms`,
		`locktest.default_sleep_ms`,
	}, fields)
	assert.True(t, strings.HasPrefix(err.Error(), `4 validation errors:`), err.Error())
}

func TestValidate_faultLogRates(t *testing.T) {
	for _, tc := range []struct {
		name   string
		rates  map[string]int
		fields []string
	}{
		{name: `empty`},
		{name: `single`, rates: map[string]int{`1h`: 1}},
		{name: `valid`, rates: map[string]int{`1s`: 10, `1m`: 100, `1h`: 1000}},
		{name: `bad key`, rates: map[string]int{`soon`: 1}, fields: []string{`loop.fault_log_rates.soon`}},
		{name: `non-positive`, rates: map[string]int{`1s`: 0, `-1s`: 1}, fields: []string{`loop.fault_log_rates.-1s`, `loop.fault_log_rates.1s`}},
		{name: `fewer events`, rates: map[string]int{`1s`: 10, `1m`: 5}, fields: []string{`loop.fault_log_rates`}},
		{name: `higher rate`, rates: map[string]int{`1s`: 1, `2s`: 3}, fields: []string{`loop.fault_log_rates`}},
		{name: `same window`, rates: map[string]int{`1s`: 1, `1000ms`: 2}, fields: []string{`loop.fault_log_rates`}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Loop.FaultLogRates = tc.rates
			var fields []string
			for _, e := range cfg.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tc.fields, fields)
			if len(tc.fields) == 0 {
				// accepted by the limiter the rates configure
				_, err := loop.New(loop.WithFaultLogRate(cfg.Loop.FaultLogRateMap()))
				require.NoError(t, err)
			}
		})
	}
}

func TestValidate_faultLogRatesMessage(t *testing.T) {
	cfg := Default()
	cfg.Loop.FaultLogRates = map[string]int{`1s`: 10, `1m`: 5}
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `catrate: invalid rates`)

	cfg.Loop.FaultLogRates = map[string]int{`1s`: 1, `1000ms`: 2}
	errs = cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, `window 1s is specified more than once`, errs[0].Message)
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Empty(t, ValidationErrors(nil).Error())
	single := ValidationErrors{{Field: `a`, Value: 1, Message: `bad`}}
	assert.Equal(t, `a: bad (got: 1)`, single.Error())
}

func TestConfigDir(t *testing.T) {
	t.Setenv(`XDG_CONFIG_HOME`, `/tmp/xdg`)
	assert.Equal(t, `/tmp/xdg/tickloop`, ConfigDir())
}
