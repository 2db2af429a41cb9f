// Package analyzer computes performance metrics over a backtest's daily
// equity series.
package analyzer

import (
	"math"

	"github.com/tfleming/ironleap/internal/engine"
)

// riskFreeRate is the annual rate used in the Sharpe ratio.
const riskFreeRate = 0.04

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252.0

// Summary holds the run's performance metrics. Every field is sanitized:
// NaN and Inf become 0.
type Summary struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	FinalEquity float64 `json:"final_equity"`
}

// Analyze computes metrics from the daily stats. An empty series yields a
// zero Summary.
func Analyze(stats []engine.DailyStat, initialCapital float64) Summary {
	if len(stats) == 0 {
		return Summary{}
	}

	// Daily returns; the first day has no prior equity, so its return is 0.
	returns := make([]float64, len(stats))
	for i := 1; i < len(stats); i++ {
		prev := stats[i-1].Equity
		if prev != 0 {
			returns[i] = (stats[i].Equity - prev) / prev
		}
	}

	finalEquity := stats[len(stats)-1].Equity
	totalReturn := (finalEquity - initialCapital) / initialCapital

	var cagr float64
	days := stats[len(stats)-1].Date.Sub(stats[0].Date).Hours() / 24
	if days > 0 {
		cagr = math.Pow(finalEquity/initialCapital, 365.0/days) - 1
	}

	stdev := sampleStdev(returns)
	volatility := stdev * math.Sqrt(tradingDaysPerYear)

	var sharpe float64
	if stdev != 0 {
		excessMean := mean(returns) - riskFreeRate/tradingDaysPerYear
		sharpe = excessMean / stdev * math.Sqrt(tradingDaysPerYear)
	}

	var maxDrawdown float64
	runningMax := stats[0].Equity
	for _, s := range stats {
		if s.Equity > runningMax {
			runningMax = s.Equity
		}
		if runningMax != 0 {
			dd := (s.Equity - runningMax) / runningMax
			if dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	winDays := 0
	for _, r := range returns {
		if r > 0 {
			winDays++
		}
	}
	winRate := float64(winDays) / float64(len(stats))

	return Summary{
		TotalReturn: clean(totalReturn),
		CAGR:        clean(cagr),
		Volatility:  clean(volatility),
		SharpeRatio: clean(sharpe),
		MaxDrawdown: clean(maxDrawdown),
		WinRate:     clean(winRate),
		FinalEquity: clean(finalEquity),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdev matches the n-1 denominator convention; fewer than two
// samples have no spread.
func sampleStdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
