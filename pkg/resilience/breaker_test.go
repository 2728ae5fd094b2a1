package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-dashboard/pkg/metrics"
	memorycollector "bank-dashboard/pkg/metrics/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func enabledConfig() Config {
	config := DefaultConfig()
	config.CircuitBreaker.Enabled = true
	return config
}

func TestBreaker_PassesThrough(t *testing.T) {
	b := NewBreaker("/api/transactions", DefaultConfig())

	calls := 0
	err := b.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/api/transactions", b.Name())
	assert.Equal(t, metrics.CircuitClosed, b.State())
}

func TestBreaker_ReturnsCallError(t *testing.T) {
	b := NewBreaker("/x", DefaultConfig())

	err := b.Do(context.Background(), func(ctx context.Context) error {
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	collector := memorycollector.NewMemoryCollector()
	config := enabledConfig()
	config.CircuitBreaker.ConsecutiveFailures = 2
	config.CircuitBreaker.OpenTimeout = time.Minute
	b := NewBreakerWithMetrics("/x", config, collector)

	fail := func(ctx context.Context) error { return errBoom }
	assert.ErrorIs(t, b.Do(context.Background(), fail), errBoom)
	assert.ErrorIs(t, b.Do(context.Background(), fail), errBoom)

	called := false
	err := b.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not run the call")
	assert.Equal(t, metrics.CircuitOpen, b.State())

	em := collector.Snapshot().Endpoints["/x"]
	assert.Equal(t, int64(1), em.CircuitOpens)
}

func TestBreaker_CustomReadyToTrip(t *testing.T) {
	config := enabledConfig()
	config.CircuitBreaker.ReadyToTrip = func(counts Counts) bool {
		return counts.TotalFailures >= 1
	}
	b := NewBreaker("/x", config)

	_ = b.Do(context.Background(), func(ctx context.Context) error { return errBoom })

	assert.Equal(t, metrics.CircuitOpen, b.State())
}

func TestBreaker_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.CircuitBreaker.Enabled = false
	config.CircuitBreaker.ConsecutiveFailures = 1
	b := NewBreaker("/x", config)

	for i := 0; i < 5; i++ {
		err := b.Do(context.Background(), func(ctx context.Context) error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}
}

func TestBreaker_Timeout(t *testing.T) {
	b := NewBreaker("/x", DefaultConfig().WithTimeout(20*time.Millisecond))

	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBreaker_CallerCancellationIsNotTimeout(t *testing.T) {
	b := NewBreaker("/x", DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error {
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestBreaker_DisabledByDefault(t *testing.T) {
	assert.False(t, DefaultConfig().CircuitBreaker.Enabled)

	b := NewBreaker("/x", DefaultConfig())
	calls := 0
	for i := 0; i < 10; i++ {
		_ = b.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errBoom
		})
	}

	assert.Equal(t, 10, calls, "every call must reach the endpoint")
	assert.Equal(t, metrics.CircuitClosed, b.State())
}

func TestBreaker_CallerCancellationDoesNotTrip(t *testing.T) {
	config := enabledConfig()
	config.CircuitBreaker.ConsecutiveFailures = 2
	b := NewBreaker("/x", config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, metrics.CircuitClosed, b.State())
	called := false
	require.NoError(t, b.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
