// Package generator enumerates iron condor candidates and selects LEAP
// hedge legs from an option chain.
package generator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/structure"
	"github.com/tfleming/ironleap/internal/util"
)

// DefaultTargetDays is the preferred days-to-expiration for condors.
const DefaultTargetDays = 40

// defaultStrikeStep is used when the chain carries too few strikes to infer
// a step.
const defaultStrikeStep = 5.0

// shortOffsetSteps are the short-strike distances from ATM, in step
// multiples. The small offsets exist to find positive theta under steep
// skew.
var shortOffsetSteps = []int{1, 2, 4, 8, 12, 16}

// wingWidthSteps are the wing widths, in step multiples. Call and put wings
// are enumerated independently: asymmetric (broken-wing) structures are
// intentional.
var wingWidthSteps = []int{1, 2, 4}

// CandidateGenerator enumerates iron condor structures around the
// at-the-money strike.
type CandidateGenerator struct {
	provider marketdata.Provider
	logger   *logrus.Logger
}

// NewCandidateGenerator creates a generator over the provider.
func NewCandidateGenerator(provider marketdata.Provider, logger *logrus.Logger) *CandidateGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &CandidateGenerator{provider: provider, logger: logger}
}

// Generate enumerates condor candidates for the symbol on refDate, using
// the expiration closest to targetDays out. It returns an empty slice when
// no data or no viable combination exists; errors are reserved for source
// failures.
func (g *CandidateGenerator) Generate(ctx context.Context, symbol string, targetDays int, refDate time.Time) ([]models.IronCondor, error) {
	if refDate.IsZero() {
		refDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if targetDays <= 0 {
		targetDays = DefaultTargetDays
	}

	spot, err := g.provider.SpotPrice(ctx, symbol, refDate)
	if err != nil {
		return nil, err
	}
	if spot == 0 {
		g.logger.WithField("symbol", symbol).Warn("no spot data, no candidates")
		return nil, nil
	}

	expirations, err := g.provider.Expirations(ctx, symbol, refDate)
	if err != nil {
		return nil, err
	}
	if len(expirations) == 0 {
		g.logger.WithField("symbol", symbol).Warn("no expirations found")
		return nil, nil
	}

	targetExp := closestExpiration(expirations, refDate, targetDays)

	chain, err := g.provider.OptionChain(ctx, symbol, refDate, targetExp)
	if err != nil {
		return nil, err
	}

	calls := make(map[float64]models.OptionLeg)
	puts := make(map[float64]models.OptionLeg)
	for _, leg := range chain {
		if leg.Right == models.RightCall {
			calls[leg.Strike] = leg
		} else {
			puts[leg.Strike] = leg
		}
	}

	step := inferStrikeStep(calls)
	atm := util.RoundToTick(spot, step)

	g.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"expiration": targetExp.Format("2006-01-02"),
		"step":       step,
		"atm":        atm,
	}).Debug("enumerating condor candidates")

	var candidates []models.IronCondor
	for _, scOffset := range shortOffsetSteps {
		for _, spOffset := range shortOffsetSteps {
			scStrike := atm + float64(scOffset)*step
			spStrike := atm - float64(spOffset)*step

			shortCall, ok := calls[scStrike]
			if !ok {
				continue
			}
			shortPut, ok := puts[spStrike]
			if !ok {
				continue
			}

			for _, callWidth := range wingWidthSteps {
				lcStrike := scStrike + float64(callWidth)*step
				longCall, ok := calls[lcStrike]
				if !ok {
					continue
				}

				for _, putWidth := range wingWidthSteps {
					lpStrike := spStrike - float64(putWidth)*step
					longPut, ok := puts[lpStrike]
					if !ok {
						continue
					}

					sc := shortCall.Clone()
					sc.Action = models.ActionSell
					sc.Quantity = -1

					lc := longCall.Clone()
					lc.Action = models.ActionBuy
					lc.Quantity = 1

					sp := shortPut.Clone()
					sp.Action = models.ActionSell
					sp.Quantity = -1

					lp := longPut.Clone()
					lp.Action = models.ActionBuy
					lp.Quantity = 1

					candidates = append(candidates, structure.Build(sc, lc, sp, lp, spot, refDate))
				}
			}
		}
	}

	g.logger.WithFields(logrus.Fields{
		"symbol":     symbol,
		"candidates": len(candidates),
	}).Debug("candidate generation complete")
	return candidates, nil
}

// closestExpiration picks the expiration whose DTE is nearest to target.
func closestExpiration(expirations []time.Time, refDate time.Time, targetDays int) time.Time {
	best := expirations[0]
	bestDiff := math.MaxFloat64
	for _, exp := range expirations {
		diff := math.Abs(float64(models.DaysBetween(refDate, exp) - targetDays))
		if diff < bestDiff {
			bestDiff = diff
			best = exp
		}
	}
	return best
}

// inferStrikeStep derives the chain's strike increment as the minimum
// consecutive-strike delta of at least 1.0, defaulting when indeterminate.
func inferStrikeStep(calls map[float64]models.OptionLeg) float64 {
	if len(calls) < 2 {
		return defaultStrikeStep
	}

	strikes := make([]float64, 0, len(calls))
	for strike := range calls {
		strikes = append(strikes, strike)
	}
	sort.Float64s(strikes)

	step := math.MaxFloat64
	for i := 1; i < len(strikes); i++ {
		diff := strikes[i] - strikes[i-1]
		if diff >= 1.0 && diff < step {
			step = diff
		}
	}
	if step == math.MaxFloat64 {
		return defaultStrikeStep
	}
	return step
}
