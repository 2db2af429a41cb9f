package marketdata

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/models"
)

// RetryConfig controls the retry wrapper's backoff behavior.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig is used when no config is supplied.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// RetryProvider retries transient source failures with exponential backoff
// and jitter. Data absence (zero spot, empty chain) is never retried.
type RetryProvider struct {
	provider Provider
	logger   *logrus.Logger
	config   RetryConfig
}

// NewRetryProvider wraps the provider with retry behavior.
func NewRetryProvider(provider Provider, logger *logrus.Logger, config ...RetryConfig) *RetryProvider {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RetryProvider{provider: provider, logger: logger, config: cfg}
}

// execRetry runs fn, retrying transient failures up to MaxRetries times.
func execRetry[T any](ctx context.Context, r *RetryProvider, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == r.config.MaxRetries {
			break
		}

		r.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
		}).Warn("transient market data failure, retrying")

		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff, r.config.MaxBackoff)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

func nextBackoff(current, max time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > max {
		backoff = max
	}
	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		if jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

// isTransientError reports whether a failure is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		errStr := strings.ToLower(srcErr.Err.Error())
		for _, pattern := range []string{
			"timeout",
			"connection refused",
			"connection reset",
			"temporary failure",
			"network",
			"dns",
			"tcp",
		} {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}
	return false
}

// SpotPrice retries the underlying provider call on transient failures.
func (r *RetryProvider) SpotPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return execRetry(ctx, r, "spot", func() (float64, error) {
		return r.provider.SpotPrice(ctx, symbol, date)
	})
}

// Volatility retries the underlying provider call on transient failures.
func (r *RetryProvider) Volatility(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return execRetry(ctx, r, "volatility", func() (float64, error) {
		return r.provider.Volatility(ctx, symbol, date)
	})
}

// Expirations retries the underlying provider call on transient failures.
func (r *RetryProvider) Expirations(ctx context.Context, symbol string, date time.Time) ([]time.Time, error) {
	return execRetry(ctx, r, "expirations", func() ([]time.Time, error) {
		return r.provider.Expirations(ctx, symbol, date)
	})
}

// OptionChain retries the underlying provider call on transient failures.
func (r *RetryProvider) OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error) {
	return execRetry(ctx, r, "chain", func() ([]models.OptionLeg, error) {
		return r.provider.OptionChain(ctx, symbol, date, expiration)
	})
}

var _ Provider = (*RetryProvider)(nil)
