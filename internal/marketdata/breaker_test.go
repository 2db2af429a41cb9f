package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerProvider_PassThrough(t *testing.T) {
	cb := NewCircuitBreakerProvider(NewStaticProvider(), nil)

	spot, err := cb.SpotPrice(context.Background(), "QQQ", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 440.0, spot)

	vol, err := cb.Volatility(context.Background(), "QQQ", time.Now())
	require.NoError(t, err)
	assert.Equal(t, DefaultVolatility, vol)
}

func TestCircuitBreakerProvider_OpensAfterFailures(t *testing.T) {
	inner := &flakyProvider{
		failures: 100,
		err:      &SourceError{Op: "spot", Err: errors.New("connection refused")},
	}
	cb := NewCircuitBreakerProviderWithSettings(inner, nil, CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cb.SpotPrice(ctx, "QQQ", time.Now())
		require.Error(t, err)
	}

	// The breaker is open now: calls fail fast without reaching the source.
	callsBefore := inner.calls
	_, err := cb.SpotPrice(ctx, "QQQ", time.Now())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, inner.calls)
}
