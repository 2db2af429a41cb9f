// Package validator filters and ranks iron condor candidates against a
// LEAP anchor leg.
package validator

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tfleming/ironleap/internal/marketdata"
	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/pricer"
)

const (
	// scenarioRate is the risk-free rate used when repricing the LEAP in
	// combined scenarios.
	scenarioRate = 0.045
	// deltaPenaltyWeight penalizes combined portfolio delta away from
	// neutral.
	deltaPenaltyWeight = 50.0
	// coverageWeight rewards condor theta relative to LEAP decay.
	coverageWeight = 10.0
)

// Validator scores condor candidates for theta coverage, loss budget, and
// delta neutrality against a held LEAP.
type Validator struct {
	logger *logrus.Logger
}

// New creates a Validator.
func New(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{logger: logger}
}

// RankAndValidate filters candidates and returns them sorted by score,
// best first.
//
// A candidate is rejected when its theta coverage is negative (the condor
// itself decays against the position) or when its worst-case loss exceeds
// budget. Coverage is condor theta over |LEAP theta|, taken as 0 when the
// LEAP theta is 0; the floor at zero rather than a minimum ratio keeps
// low-theta structures from steep skew in play.
//
// When spot > 0 each surviving candidate carries combined portfolio
// scenarios: the condor's expiration P&L plus the LEAP repriced at the
// shifted spot with the time remaining after the condor expires.
func (v *Validator) RankAndValidate(leap *models.LeapRecommendation, candidates []models.IronCondor, budget, spot float64, refDate time.Time) []models.Recommendation {
	if refDate.IsZero() {
		refDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	leapTheta := leap.Leg.Greeks.Theta
	v.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"leap_theta": leapTheta,
	}).Info("validating condor candidates")

	var valid []models.Recommendation
	for _, ic := range candidates {
		var coverage float64
		if leapTheta != 0 {
			coverage = ic.Greeks.Theta / math.Abs(leapTheta)
		}
		if coverage < 0 {
			v.logger.WithField("ic_theta", ic.Greeks.Theta).Debug("rejected candidate: negative theta")
			continue
		}

		// Worst case for a defined-risk condor is width minus credit.
		maxLoss := ic.MarginRequirement/models.SharesPerContract - ic.NetCredit
		if maxLoss > budget {
			v.logger.WithFields(logrus.Fields{
				"max_loss": maxLoss,
				"budget":   budget,
			}).Debug("rejected candidate: over loss budget")
			continue
		}

		portfolioDelta := leap.Leg.Greeks.Delta + ic.Greeks.Delta
		score := coverage*coverageWeight + ic.NetCredit - math.Abs(portfolioDelta)*deltaPenaltyWeight

		rec := models.Recommendation{
			Leap:   *leap,
			Condor: ic,
			Score:  score,
			Analysis: map[string]float64{
				"theta_coverage":  coverage,
				"max_loss":        maxLoss,
				"net_credit":      ic.NetCredit,
				"portfolio_delta": portfolioDelta,
			},
		}

		if spot > 0 {
			leapDTE := models.DaysBetween(refDate, leap.Leg.Expiration) - ic.DaysToExpiration
			tLeap := math.Max(0, float64(leapDTE)/365.0)
			rec.PortfolioScenarios = combineWithLeap(ic.Scenarios, leap.Leg, spot, tLeap)
			rec.PortfolioCurve = combineWithLeap(ic.Curve, leap.Leg, spot, tLeap)
		}

		valid = append(valid, rec)
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Score > valid[j].Score })
	return valid
}

// combineWithLeap overlays the LEAP's repriced P&L onto each condor
// scenario point.
func combineWithLeap(points []models.PnLPoint, leg models.OptionLeg, spot, tLeap float64) []models.PnLPoint {
	if len(points) == 0 {
		return nil
	}

	vol := marketdata.DefaultVolatility
	if leg.ImpliedVol != nil {
		vol = *leg.ImpliedVol
	}
	isCall := leg.Right == models.RightCall

	combined := make([]models.PnLPoint, 0, len(points))
	for _, pt := range points {
		newSpot := spot * (1 + pt.PriceChangePct/100)
		newPrice := pricer.Price(newSpot, leg.Strike, tLeap, scenarioRate, vol, isCall)
		leapPnL := (newPrice - leg.Price) * float64(leg.Quantity) * models.SharesPerContract

		combined = append(combined, models.PnLPoint{
			PriceChangePct:  pt.PriceChangePct,
			UnderlyingPrice: newSpot,
			EstimatedPnL:    pt.EstimatedPnL + leapPnL,
		})
	}
	return combined
}
