// Package formulas holds the numeric helpers used by the reporting layer.
// All functions work on plain float64 slices; callers convert from exact
// decimal amounts at the boundary, since these are descriptive statistics,
// not ledger arithmetic.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Returns converts a value series to periodic percentage returns:
// returns[i] = (v[i+1] - v[i]) / v[i]. Zero-valued points yield a zero
// return rather than a division blowup.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}
	return returns
}

// AnnualizedVolatility scales the standard deviation of daily returns by
// sqrt(252 trading days).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(252)
}
