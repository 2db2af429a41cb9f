package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfleming/ironleap/internal/models"
)

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	err      error
	calls    int
}

func (f *flakyProvider) SpotPrice(_ context.Context, _ string, _ time.Time) (float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return 450.0, nil
}

func (f *flakyProvider) Volatility(_ context.Context, _ string, _ time.Time) (float64, error) {
	return 0.20, nil
}

func (f *flakyProvider) Expirations(_ context.Context, _ string, _ time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f *flakyProvider) OptionChain(_ context.Context, _ string, _, _ time.Time) ([]models.OptionLeg, error) {
	return nil, nil
}

var _ Provider = (*flakyProvider)(nil)

func fastRetry(p Provider) *RetryProvider {
	return NewRetryProvider(p, nil, RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func TestRetryProvider_RecoversFromTransient(t *testing.T) {
	inner := &flakyProvider{
		failures: 2,
		err:      &SourceError{Op: "spot", Err: errors.New("connection refused")},
	}
	r := fastRetry(inner)

	spot, err := r.SpotPrice(context.Background(), "QQQ", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 450.0, spot)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryProvider_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyProvider{
		failures: 10,
		err:      &SourceError{Op: "spot", Err: errors.New("connection reset")},
	}
	r := fastRetry(inner)

	_, err := r.SpotPrice(context.Background(), "QQQ", time.Now())
	require.Error(t, err)
	assert.Equal(t, 4, inner.calls) // initial attempt plus three retries
}

func TestRetryProvider_NoRetryOnPermanentError(t *testing.T) {
	inner := &flakyProvider{
		failures: 10,
		err:      &SourceError{Op: "spot", Err: &APIError{Status: 401, Body: "unauthorized"}},
	}
	r := fastRetry(inner)

	_, err := r.SpotPrice(context.Background(), "QQQ", time.Now())
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &APIError{Status: 429}, true},
		{"server error", &APIError{Status: 503}, true},
		{"client error", &APIError{Status: 404}, false},
		{"wrapped timeout", &SourceError{Op: "x", Err: errors.New("dial tcp: i/o timeout")}, true},
		{"wrapped dns", &SourceError{Op: "x", Err: errors.New("dns resolution failed")}, true},
		{"wrapped parse", &SourceError{Op: "x", Err: errors.New("decoding response: bad json")}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestRetryProvider_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyProvider{failures: 10, err: &SourceError{Op: "spot", Err: errors.New("timeout")}}
	r := fastRetry(inner)

	_, err := r.SpotPrice(ctx, "QQQ", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
