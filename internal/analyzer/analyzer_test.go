package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tfleming/ironleap/internal/engine"
)

func stat(d time.Time, equity float64) engine.DailyStat {
	return engine.DailyStat{Date: d, Equity: equity}
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Analyze(nil, 100000))
}

func TestAnalyze_SingleDay(t *testing.T) {
	s := Analyze([]engine.DailyStat{stat(day(0), 101000)}, 100000)

	assert.InDelta(t, 0.01, s.TotalReturn, 1e-9)
	// Zero elapsed days: CAGR collapses to zero rather than Inf.
	assert.Zero(t, s.CAGR)
	assert.Zero(t, s.Volatility)
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.MaxDrawdown)
	assert.InDelta(t, 101000, s.FinalEquity, 1e-9)
}

func TestAnalyze_FlatSeries(t *testing.T) {
	stats := []engine.DailyStat{
		stat(day(0), 100000),
		stat(day(1), 100000),
		stat(day(2), 100000),
		stat(day(3), 100000),
	}
	s := Analyze(stats, 100000)

	assert.Zero(t, s.TotalReturn)
	assert.Zero(t, s.CAGR)
	assert.Zero(t, s.Volatility)
	// Zero variance: Sharpe is defined as zero, not NaN.
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.WinRate)
}

func TestAnalyze_KnownDrawdown(t *testing.T) {
	stats := []engine.DailyStat{
		stat(day(0), 100000),
		stat(day(1), 110000),
		stat(day(2), 99000),
		stat(day(3), 104500),
	}
	s := Analyze(stats, 100000)

	// Peak 110000 to trough 99000.
	assert.InDelta(t, -0.10, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.045, s.TotalReturn, 1e-9)
	// Two up days out of four.
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.Greater(t, s.Volatility, 0.0)
}

func TestAnalyze_CAGRAnnualizes(t *testing.T) {
	stats := []engine.DailyStat{
		stat(day(0), 100000),
		stat(day(365), 110000),
	}
	s := Analyze(stats, 100000)
	assert.InDelta(t, 0.10, s.CAGR, 1e-9)

	// Half a year at the same total return compounds to more.
	stats = []engine.DailyStat{
		stat(day(0), 100000),
		stat(day(182), 110000),
	}
	s = Analyze(stats, 100000)
	assert.InDelta(t, math.Pow(1.10, 365.0/182.0)-1, s.CAGR, 1e-9)
}

func TestAnalyze_SanitizesNonFinite(t *testing.T) {
	// A wiped-out account would otherwise produce infinities downstream.
	stats := []engine.DailyStat{
		stat(day(0), 0),
		stat(day(1), 0),
	}
	s := Analyze(stats, 100000)
	assert.False(t, math.IsNaN(s.CAGR) || math.IsInf(s.CAGR, 0))
	assert.False(t, math.IsNaN(s.SharpeRatio) || math.IsInf(s.SharpeRatio, 0))
	assert.InDelta(t, -1.0, s.TotalReturn, 1e-9)
}
