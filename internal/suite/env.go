package suite

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/programme-lv/membench/internal/bench"
)

// Env vars overriding measurement defaults. CLI flags take precedence over
// these; these take precedence over built-in defaults.
const (
	envIntervalMs    = "MEMBENCH_INTERVAL_MS"
	envStopTimeoutMs = "MEMBENCH_STOP_TIMEOUT_MS"
	envSettleMs      = "MEMBENCH_SETTLE_MS"
	envResultsPath   = "MEMBENCH_RESULTS_JSONL"
)

type EnvConfig struct {
	Interval    time.Duration
	StopTimeout time.Duration
	SettleDelay time.Duration
	ResultsPath string
}

// LoadEnvConfig reads an optional .env file, then the process environment.
// Unset or unparseable values are left at zero so callers fall back to their
// own defaults.
func LoadEnvConfig() EnvConfig {
	godotenv.Load()

	return EnvConfig{
		Interval:    msVar(envIntervalMs),
		StopTimeout: msVar(envStopTimeoutMs),
		SettleDelay: msVar(envSettleMs),
		ResultsPath: os.Getenv(envResultsPath),
	}
}

// Apply overlays the env config onto measurement options that are still at
// their zero value.
func (e EnvConfig) Apply(opts *bench.Options) {
	if opts.Interval <= 0 {
		opts.Interval = e.Interval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = e.StopTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = e.SettleDelay
	}
}

func msVar(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
