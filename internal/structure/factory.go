// Package structure assembles priced option legs into scored iron condor
// structures.
package structure

import (
	"math"
	"time"

	"github.com/tfleming/ironleap/internal/models"
	"github.com/tfleming/ironleap/internal/pricer"
)

// ScenarioRiskFreeRate is the rate used when repricing legs at expiration.
const ScenarioRiskFreeRate = 0.045

// coarseShifts are the standard scenario spot shifts.
var coarseShifts = []float64{-0.05, -0.02, 0.0, 0.02, 0.05}

const (
	curveStartPct = -0.10
	curveEndPct   = 0.10
	curveSteps    = 50
)

// Build assembles four legs into an IronCondor. Pure: the inputs are value
// copies and the result carries no references back to them.
//
// When spot > 0 the structure includes two P&L scenario sets, each computed
// by repricing every leg at expiration (T=0) under the shifted spot with the
// leg's own implied volatility. Legs without an implied volatility are
// excluded from the scenario sums rather than treated as zero.
func Build(shortCall, longCall, shortPut, longPut models.OptionLeg, spot float64, refDate time.Time) models.IronCondor {
	if refDate.IsZero() {
		refDate = time.Now().UTC()
	}

	legs := []models.OptionLeg{shortCall, longCall, shortPut, longPut}

	var greeks models.GreekVector
	for _, leg := range legs {
		q := float64(leg.Quantity)
		greeks.Delta += leg.Greeks.Delta * q
		greeks.Gamma += leg.Greeks.Gamma * q
		greeks.Theta += leg.Greeks.Theta * q
		greeks.Vega += leg.Greeks.Vega * q
	}

	// Short legs are proceeds, long legs are costs; prices are unsigned.
	credit := shortCall.Price*math.Abs(float64(shortCall.Quantity)) +
		shortPut.Price*math.Abs(float64(shortPut.Quantity)) -
		longCall.Price*math.Abs(float64(longCall.Quantity)) -
		longPut.Price*math.Abs(float64(longPut.Quantity))

	callWidth := math.Abs(longCall.Strike - shortCall.Strike)
	putWidth := math.Abs(shortPut.Strike - longPut.Strike)
	margin := math.Max(callWidth, putWidth) * models.SharesPerContract

	ic := models.IronCondor{
		ShortCall:         shortCall,
		LongCall:          longCall,
		ShortPut:          shortPut,
		LongPut:           longPut,
		NetCredit:         credit,
		MarginRequirement: margin,
		Greeks:            greeks,
		DaysToExpiration:  models.DaysBetween(refDate, shortCall.Expiration),
	}

	if spot > 0 {
		ic.Scenarios = make([]models.PnLPoint, 0, len(coarseShifts))
		for _, pct := range coarseShifts {
			ic.Scenarios = append(ic.Scenarios, expirationPnL(legs, spot, pct))
		}

		ic.Curve = make([]models.PnLPoint, 0, curveSteps+1)
		stepSize := (curveEndPct - curveStartPct) / curveSteps
		for i := 0; i <= curveSteps; i++ {
			pct := curveStartPct + float64(i)*stepSize
			ic.Curve = append(ic.Curve, expirationPnL(legs, spot, pct))
		}
	}

	return ic
}

// expirationPnL reprices every IV-bearing leg at T=0 under the shifted spot
// and sums the per-leg P&L against its current price.
func expirationPnL(legs []models.OptionLeg, spot, pctChange float64) models.PnLPoint {
	newSpot := spot * (1 + pctChange)

	var total float64
	for _, leg := range legs {
		if leg.ImpliedVol == nil {
			continue
		}
		isCall := leg.Right == models.RightCall
		newPrice := pricer.Price(newSpot, leg.Strike, 0, ScenarioRiskFreeRate, *leg.ImpliedVol, isCall)
		total += (newPrice - leg.Price) * float64(leg.Quantity) * models.SharesPerContract
	}

	return models.PnLPoint{
		PriceChangePct:  pctChange * 100,
		UnderlyingPrice: newSpot,
		EstimatedPnL:    total,
	}
}
