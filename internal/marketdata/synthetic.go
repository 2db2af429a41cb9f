package marketdata

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/pricer"
	"github.com/tfleming/ironleap/internal/util"
)

const (
	weeklyExpirations  = 6
	monthlyExpirations = 24
	strikeRangePct     = 0.20
)

type quoteKey struct {
	symbol string
	date   string
}

// SyntheticProvider synthesizes option chains from historical daily bars by
// pricing every strike with the Black-Scholes model.
//
// The spot and volatility caches are owned by the provider value: construct
// one provider per backtest run and discard it at completion.
type SyntheticProvider struct {
	bars   BarStore
	logger *logrus.Logger

	spotCache map[quoteKey]float64
	volCache  map[quoteKey]float64
}

// NewSyntheticProvider creates a provider over the given bar store.
func NewSyntheticProvider(bars BarStore, logger *logrus.Logger) *SyntheticProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &SyntheticProvider{
		bars:      bars,
		logger:    logger,
		spotCache: make(map[quoteKey]float64),
		volCache:  make(map[quoteKey]float64),
	}
}

func cacheKey(symbol string, date time.Time) quoteKey {
	return quoteKey{symbol: symbol, date: date.UTC().Format("2006-01-02")}
}

// SpotPrice returns the stored close for the symbol on the date, or 0.0 when
// no bar exists. A zero return means "no data", never a valid quote.
func (p *SyntheticProvider) SpotPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	key := cacheKey(symbol, date)
	if spot, ok := p.spotCache[key]; ok {
		return spot, nil
	}

	bar, err := p.bars.GetBar(ctx, symbol, date)
	if errors.Is(err, ErrBarNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, &SourceError{Op: "spot lookup", Err: err}
	}

	p.spotCache[key] = bar.Close
	return bar.Close, nil
}

// Volatility returns the implied volatility proxy for the symbol on the
// date. The proxy index close is stored in percentage points and divided by
// 100; missing readings fall back to DefaultVolatility.
func (p *SyntheticProvider) Volatility(ctx context.Context, symbol string, date time.Time) (float64, error) {
	volSymbol := VolatilitySymbol(symbol)
	key := cacheKey(volSymbol, date)
	if vol, ok := p.volCache[key]; ok {
		return vol, nil
	}

	bar, err := p.bars.GetBar(ctx, volSymbol, date)
	if errors.Is(err, ErrBarNotFound) {
		return DefaultVolatility, nil
	}
	if err != nil {
		return 0, &SourceError{Op: "volatility lookup", Err: err}
	}

	vol := bar.Close / 100.0
	p.volCache[key] = vol
	return vol, nil
}

// Expirations synthesizes the next six weekly Fridays plus the third Friday
// of each of the next 24 months that falls after the reference date.
func (p *SyntheticProvider) Expirations(_ context.Context, _ string, date time.Time) ([]time.Time, error) {
	date = date.UTC().Truncate(24 * time.Hour)
	seen := make(map[time.Time]struct{})

	current := date
	for i := 0; i < weeklyExpirations; i++ {
		current = nextFriday(current)
		seen[current] = struct{}{}
	}

	month := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < monthlyExpirations; i++ {
		third := thirdFriday(month)
		if third.After(date) {
			seen[third] = struct{}{}
		}
		month = month.AddDate(0, 1, 0)
	}

	expirations := make([]time.Time, 0, len(seen))
	for exp := range seen {
		expirations = append(expirations, exp)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })
	return expirations, nil
}

// nextFriday returns the first Friday strictly after d.
func nextFriday(d time.Time) time.Time {
	daysAhead := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	return d.AddDate(0, 0, daysAhead)
}

// thirdFriday returns the third Friday of the month containing d.
func thirdFriday(monthStart time.Time) time.Time {
	daysToFriday := (int(time.Friday) - int(monthStart.Weekday()) + 7) % 7
	firstFriday := monthStart.AddDate(0, 0, daysToFriday)
	return firstFriday.AddDate(0, 0, 14)
}

// StrikeStep returns the synthetic strike increment for a spot level.
func StrikeStep(spot float64) float64 {
	switch {
	case spot < 1000:
		return 5
	case spot < 10000:
		return 25
	default:
		return 100
	}
}

// OptionChain prices every strike within +-20% of spot for the expiration.
// A zero expiration prices every synthesized expiration. The chain is empty
// when no spot data exists.
func (p *SyntheticProvider) OptionChain(ctx context.Context, symbol string, date, expiration time.Time) ([]models.OptionLeg, error) {
	spot, err := p.SpotPrice(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if spot == 0 {
		p.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"date":   date.Format("2006-01-02"),
		}).Warn("no spot data, returning empty chain")
		return nil, nil
	}

	vol, err := p.Volatility(ctx, symbol, date)
	if err != nil {
		return nil, err
	}

	var expirations []time.Time
	if expiration.IsZero() {
		expirations, err = p.Expirations(ctx, symbol, date)
		if err != nil {
			return nil, err
		}
	} else {
		expirations = []time.Time{expiration}
	}

	step := StrikeStep(spot)
	startStrike := util.FloorToTick(spot*(1-strikeRangePct), step)
	endStrike := util.CeilToTick(spot*(1+strikeRangePct), step)

	var legs []models.OptionLeg
	for _, exp := range expirations {
		dte := models.DaysBetween(date, exp)
		if dte < 1 {
			continue
		}
		t := float64(dte) / 365.0

		for strike := startStrike; strike <= endStrike; strike += step {
			for _, right := range []models.OptionRight{models.RightCall, models.RightPut} {
				isCall := right == models.RightCall
				price := pricer.Price(spot, strike, t, RiskFreeRate, vol, isCall)
				delta, gamma, theta, vega := pricer.Greeks(spot, strike, t, RiskFreeRate, vol, isCall)

				iv := vol
				legs = append(legs, models.OptionLeg{
					Symbol:     symbol,
					Strike:     strike,
					Expiration: exp,
					Right:      right,
					Action:     models.ActionBuy,
					Greeks:     models.GreekVector{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega},
					Price:      price,
					Mid:        price,
					ImpliedVol: &iv,
					ContractID: SyntheticContractID(symbol, exp, strike, right),
				})
			}
		}
	}
	return legs, nil
}

// SyntheticContractID derives a stable contract identifier for a synthetic
// option. Identical inputs always map to the same id.
func SyntheticContractID(symbol string, expiration time.Time, strike float64, right models.OptionRight) int64 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%g|%s", symbol, expiration.UTC().Format("2006-01-02"), strike, right.Code())
	return int64(h.Sum32())
}

var _ Provider = (*SyntheticProvider)(nil)
