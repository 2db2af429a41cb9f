// Package pricer implements closed-form Black-Scholes valuation and Greeks
// for European-style vanilla options.
package pricer

import "math"

const (
	daysPerYear   = 365.0
	volPointScale = 100.0
)

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// Price returns the Black-Scholes value of a vanilla option. For T <= 0 it
// returns intrinsic value. Callers must supply sigma > 0; T may be any real.
func Price(s, k, t, r, sigma float64, isCall bool) float64 {
	if t <= 0 {
		if isCall {
			return math.Max(0, s-k)
		}
		return math.Max(0, k-s)
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	if isCall {
		return s*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
	}
	return k*math.Exp(-r*t)*normCDF(-d2) - s*normCDF(-d1)
}

// Greeks returns delta, gamma, theta, and vega. All are zero for T <= 0.
// Theta is rescaled to per calendar day and vega to per volatility point,
// matching the usual quoting convention.
func Greeks(s, k, t, r, sigma float64, isCall bool) (delta, gamma, theta, vega float64) {
	if t <= 0 {
		return 0, 0, 0, 0
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	if isCall {
		delta = normCDF(d1)
	} else {
		delta = normCDF(d1) - 1
	}
	gamma = normPDF(d1) / (s * sigma * sqrtT)

	thetaD2 := d2
	if !isCall {
		thetaD2 = -d2
	}
	theta = -(s*normPDF(d1)*sigma)/(2*sqrtT) - r*k*math.Exp(-r*t)*normCDF(thetaD2)
	vega = s * normPDF(d1) * sqrtT

	theta /= daysPerYear
	vega /= volPointScale
	return delta, gamma, theta, vega
}
