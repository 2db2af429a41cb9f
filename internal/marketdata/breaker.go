package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/tfleming/ironleap/internal/models"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker protection.
// Intended for live providers, where a flapping endpoint should trip fast
// instead of stalling a recommendation run call by call.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider wraps the provider with sensible defaults.
func NewCircuitBreakerProvider(provider Provider, logger *logrus.Logger) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(provider, logger, CircuitBreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	})
}

// NewCircuitBreakerProviderWithSettings wraps the provider with custom settings.
func NewCircuitBreakerProviderWithSettings(provider Provider, logger *logrus.Logger, settings CircuitBreakerSettings) *CircuitBreakerProvider {
	if logger == nil {
		logger = logrus.New()
	}
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, provider Provider, fn func(Provider) (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(provider) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// SpotPrice wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) SpotPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (float64, error) {
		return p.SpotPrice(ctx, symbol, date)
	})
}

// Volatility wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Volatility(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (float64, error) {
		return p.Volatility(ctx, symbol, date)
	})
}

// Expirations wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) Expirations(ctx context.Context, symbol string, date time.Time) ([]time.Time, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]time.Time, error) {
		return p.Expirations(ctx, symbol, date)
	})
}

// OptionChain wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]models.OptionLeg, error) {
		return p.OptionChain(ctx, symbol, date, expiration)
	})
}

var _ Provider = (*CircuitBreakerProvider)(nil)
