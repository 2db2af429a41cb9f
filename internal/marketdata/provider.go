// Package marketdata provides spot, volatility, expiration, and option-chain
// lookups behind a single Provider interface with synthetic and live
// implementations.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tfleming/ironleap/internal/models"
)

// DefaultVolatility is used whenever a volatility source has no reading.
const DefaultVolatility = 0.20

// RiskFreeRate is the fixed rate used when synthesizing chains.
const RiskFreeRate = 0.05

// Provider is the capability set shared by the synthetic and live market
// data sources.
//
// Data absence is not an error: SpotPrice returns 0.0 when no quote exists
// for the symbol/date, and callers must treat 0 as "no data" rather than a
// valid price. Errors are reserved for source failures (network,
// connectivity), surfaced as *SourceError.
type Provider interface {
	// SpotPrice returns the underlying price for the symbol on the date.
	SpotPrice(ctx context.Context, symbol string, date time.Time) (float64, error)

	// Volatility returns implied volatility as a decimal (0.20 = 20%).
	Volatility(ctx context.Context, symbol string, date time.Time) (float64, error)

	// Expirations returns the sorted future expiration dates available.
	Expirations(ctx context.Context, symbol string, date time.Time) ([]time.Time, error)

	// OptionChain returns priced legs for the expiration. A zero expiration
	// requests every available expiration.
	OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error)
}

// ErrBarNotFound is returned by a BarStore when no bar exists for the
// requested symbol and date. Absence is distinguishable from a zero bar.
var ErrBarNotFound = errors.New("daily bar not found")

// SourceError wraps a failure of an external data source. It is distinct
// from data absence: call sites must never convert it to a zero price.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("market data source failure during %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// APIError represents a non-2xx response from a live data endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// VolatilitySymbol maps an underlying to the index used as its implied
// volatility proxy.
func VolatilitySymbol(symbol string) string {
	switch symbol {
	case "NDX", "QQQ":
		return "VXN"
	case "SPX", "SPY":
		return "VIX"
	default:
		return "VIX"
	}
}
