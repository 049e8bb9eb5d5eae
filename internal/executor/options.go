package executor

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/invocation"
)

type config struct {
	workers      int
	timeout      time.Duration
	retries      int
	retryBackoff time.Duration
	telemetry    invocation.Telemetry
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		workers:   runtime.NumCPU(),
		retries:   1,
		telemetry: invocation.LogTelemetry{},
		logger:    slog.Default(),
	}
}

// Option configures an Executor.
type Option func(*config)

// WithWorkers sets the worker pool size. Values below one mean one.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithTimeout cancels every run that has not finished after d.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRetry makes a node call up to attempts times when it fails with
// node.ErrUpstreamFailure, sleeping backoff between attempts. Other errors
// are never retried.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *config) {
		if attempts < 1 {
			attempts = 1
		}
		c.retries = attempts
		c.retryBackoff = backoff
	}
}

// WithTelemetry sets the sink for per-call telemetry records.
func WithTelemetry(t invocation.Telemetry) Option {
	return func(c *config) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithLogger sets the logger for executor-level events that have no run
// context, such as dropped subscriber events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
