package stats

import "math"

// Rolling window aggregations with pandas min-periods semantics: the
// aggregate at index i covers the trailing window ending at i, computed
// over its non-NaN entries, and is NaN when fewer than minPeriods of
// them are present.

func rollingApply(xs []float64, window, minPeriods int, agg func([]float64) float64) []float64 {
	out := NaNs(len(xs))
	if window <= 0 {
		return out
	}
	if minPeriods <= 0 {
		minPeriods = window
	}
	buf := make([]float64, 0, window)
	for i := range xs {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, x := range xs[start : i+1] {
			if !math.IsNaN(x) {
				buf = append(buf, x)
			}
		}
		if len(buf) < minPeriods {
			continue
		}
		out[i] = agg(buf)
	}
	return out
}

// RollingMean is the trailing-window mean.
func RollingMean(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, Mean)
}

// RollingStd is the trailing-window sample standard deviation.
func RollingStd(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, StdDev)
}

// RollingVar is the trailing-window sample variance.
func RollingVar(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, Variance)
}

// RollingSkew is the trailing-window bias-corrected skewness.
func RollingSkew(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, Skewness)
}

// RollingKurt is the trailing-window bias-corrected excess kurtosis.
func RollingKurt(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, Kurtosis)
}

// RollingMax is the trailing-window maximum.
func RollingMax(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, func(b []float64) float64 {
		m := b[0]
		for _, x := range b[1:] {
			if x > m {
				m = x
			}
		}
		return m
	})
}

// RollingMin is the trailing-window minimum.
func RollingMin(xs []float64, window, minPeriods int) []float64 {
	return rollingApply(xs, window, minPeriods, func(b []float64) float64 {
		m := b[0]
		for _, x := range b[1:] {
			if x < m {
				m = x
			}
		}
		return m
	})
}
