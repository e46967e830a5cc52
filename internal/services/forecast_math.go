package services

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// mean returns the arithmetic mean of values, 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev returns the sample standard deviation, 0 for fewer than two values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// olsFit fits y = intercept + slope*x by ordinary least squares over
// x = 0..len(y)-1. A constant or single-point series gets slope 0.
func olsFit(y []float64) (slope, intercept float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, y[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// smooth applies a trailing simple moving average with the given window.
// The slice keeps its length: the indicator drops the warmup prefix, so the
// original leading values are kept as-is to stay aligned with their dates.
func smooth(values []float64, window int) []float64 {
	if window <= 1 || len(values) < window {
		return values
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	out := make([]float64, len(values))
	warmup := len(values) - len(smoothed)
	copy(out, values[:warmup])
	copy(out[warmup:], smoothed)
	return out
}

// clampNonNegative floors a value at zero.
func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
