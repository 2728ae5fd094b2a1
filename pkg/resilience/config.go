package resilience

import (
	"time"
)

// Config configures resilience features for backend calls.
type Config struct {
	// Timeout for a single backend call. Zero means no timeout; a hung
	// request then waits for the caller's context.
	Timeout time.Duration `yaml:"timeout"`

	// CircuitBreaker configures the circuit breaker behavior
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Enabled turns the breaker on. A disabled breaker passes every call through.
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open. Default: 1
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the CircuitBreaker
	// to clear the internal counts. If Interval is 0, it never clears.
	Interval time.Duration `yaml:"interval"`

	// OpenTimeout is the period of the open state after which the state becomes half-open.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// ConsecutiveFailures trips the breaker when reached. Ignored when ReadyToTrip is set.
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`

	// ReadyToTrip is called with a copy of Counts whenever a request fails.
	ReadyToTrip func(counts Counts) bool `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig returns the defaults: no call timeout and the breaker
// disabled, so every call is attempted exactly once. When enabled, the
// breaker trips after five consecutive failures and tries again after 30s.
func DefaultConfig() Config {
	return Config{
		Timeout: 0,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			MaxRequests:         1,
			Interval:            60 * time.Second,
			OpenTimeout:         30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// readyToTrip resolves the trip predicate for the breaker.
func (c CircuitBreakerConfig) readyToTrip() func(Counts) bool {
	if c.ReadyToTrip != nil {
		return c.ReadyToTrip
	}
	threshold := c.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
}
