package resilience

import (
	"context"
	"errors"
	"time"

	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	ErrCircuitOpen = errors.New("resilience: circuit breaker open")

	// ErrTimeout is returned when a call exceeds the configured timeout
	ErrTimeout = errors.New("resilience: call timeout")
)

// Breaker guards calls to one backend endpoint with a circuit breaker and
// an optional timeout. It never retries.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	enabled bool
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewBreaker creates a breaker for the named endpoint.
func NewBreaker(name string, config Config) *Breaker {
	return NewBreakerWithMetrics(name, config, metrics.NoOpCollector{})
}

// NewBreakerWithMetrics creates a breaker that reports state changes to the collector.
func NewBreakerWithMetrics(name string, config Config, metricsCollector metrics.MetricsCollector) *Breaker {
	if metricsCollector == nil {
		metricsCollector = metrics.NoOpCollector{}
	}
	logger := logging.L().Named("resilience").With(zap.String("endpoint", name))

	b := &Breaker{
		name:    name,
		enabled: config.CircuitBreaker.Enabled,
		timeout: config.Timeout,
		metrics: metricsCollector,
		logger:  logger,
	}

	trip := config.CircuitBreaker.readyToTrip()
	maxRequests := config.CircuitBreaker.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return trip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			b.metrics.RecordCircuitState(name, toCircuitState(to))
		},
		IsSuccessful: isSuccessful,
	})

	return b
}

// Name returns the endpoint this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the current breaker state.
func (b *Breaker) State() metrics.CircuitState {
	return toCircuitState(b.cb.State())
}

// Do runs fn once under the breaker and timeout.
// A rejected call returns ErrCircuitOpen; an expired timeout returns an error
// wrapping both ErrTimeout and the call's own error.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var err error
	if b.enabled {
		_, err = b.cb.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
	} else {
		err = fn(ctx)
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("circuit breaker open - request rejected")
		return ErrCircuitOpen
	}
	if b.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		b.logger.Warn("backend call timeout", zap.Duration("timeout", b.timeout))
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// isSuccessful decides what the breaker counts as a failure. A caller that
// gave up says nothing about the endpoint's health.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}
