package generator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
)

const (
	// DefaultLeapMinDays is the minimum days-to-expiration for a LEAP.
	DefaultLeapMinDays = 365
	// DefaultLeapTargetDelta is the preferred delta for the long call.
	DefaultLeapTargetDelta = 0.70
)

// LeapSelector picks a long-dated call leg to anchor the position.
type LeapSelector struct {
	provider marketdata.Provider
	logger   *logrus.Logger
}

// NewLeapSelector creates a selector over the provider.
func NewLeapSelector(provider marketdata.Provider, logger *logrus.Logger) *LeapSelector {
	if logger == nil {
		logger = logrus.New()
	}
	return &LeapSelector{provider: provider, logger: logger}
}

// SelectBest returns the call closest to targetDelta on the nearest
// expiration at least minDays out. It returns nil when no qualifying
// expiration or call exists; errors are reserved for source failures.
func (s *LeapSelector) SelectBest(ctx context.Context, symbol string, targetDelta float64, minDays int, refDate time.Time) (*models.LeapRecommendation, error) {
	if refDate.IsZero() {
		refDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if minDays <= 0 {
		minDays = DefaultLeapMinDays
	}
	if targetDelta <= 0 {
		targetDelta = DefaultLeapTargetDelta
	}

	expirations, err := s.provider.Expirations(ctx, symbol, refDate)
	if err != nil {
		return nil, err
	}

	var leapExp time.Time
	for _, exp := range expirations {
		if models.DaysBetween(refDate, exp) >= minDays {
			if leapExp.IsZero() || exp.Before(leapExp) {
				leapExp = exp
			}
		}
	}
	if leapExp.IsZero() {
		s.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"min_days": minDays,
		}).Warn("no expiration far enough out for a LEAP")
		return nil, nil
	}

	chain, err := s.provider.OptionChain(ctx, symbol, refDate, leapExp)
	if err != nil {
		return nil, err
	}

	var best *models.OptionLeg
	bestDiff := math.MaxFloat64
	for i := range chain {
		leg := &chain[i]
		if leg.Right != models.RightCall {
			continue
		}
		diff := math.Abs(leg.Greeks.Delta - targetDelta)
		if diff < bestDiff {
			bestDiff = diff
			best = leg
		}
	}
	if best == nil {
		s.logger.WithField("symbol", symbol).Warn("no calls in LEAP chain")
		return nil, nil
	}

	leg := best.Clone()
	leg.Action = models.ActionBuy
	leg.Quantity = 1

	return &models.LeapRecommendation{
		Leg: leg,
		Reason: fmt.Sprintf("delta %.2f call expiring %s",
			leg.Greeks.Delta, leapExp.Format("2006-01-02")),
	}, nil
}
