// Package util provides common utility functions for price calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	return math.Round(x/tick) * tick
}

// FloorToTick rounds x down to the nearest tick increment, tolerating small
// floating point drift just below a boundary.
func FloorToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	q := x / tick
	// Snap to the boundary when within rounding noise of it.
	if nearest := math.Round(q); math.Abs(q-nearest) < 1e-9 {
		q = nearest
	}
	return math.Floor(q) * tick
}

// CeilToTick rounds x up to the nearest tick increment, tolerating small
// floating point drift just above a boundary.
func CeilToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	q := x / tick
	if nearest := math.Round(q); math.Abs(q-nearest) < 1e-9 {
		q = nearest
	}
	return math.Ceil(q) * tick
}
