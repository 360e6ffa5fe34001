// Package returns holds the return and realized-volatility kernels shared
// by the TA/quant generators and the portfolio optimizer.
package returns

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
)

// Log computes log returns over a price series. The result always has the
// same length as the input with the first entry NaN. Non-positive and NaN
// prices are treated as missing and repaired by forward- then back-filling;
// if the series cannot be fully repaired, or fewer than 2 usable prices
// exist, every entry is NaN. Never panics.
func Log(prices []float64) []float64 {
	out := stats.NaNs(len(prices))
	if len(prices) < 2 {
		log.Warn().Int("len", len(prices)).Msg("log returns: need at least 2 prices")
		return out
	}

	clean := fillNonPositive(prices)
	for _, p := range clean {
		if math.IsNaN(p) || p <= 0 {
			log.Warn().Msg("log returns: unable to clean all non-positive prices")
			return out
		}
	}

	for i := 1; i < len(clean); i++ {
		out[i] = math.Log(clean[i] / clean[i-1])
	}
	return out
}

// Simple computes simple percentage returns, first entry NaN.
func Simple(prices []float64) []float64 {
	out := stats.NaNs(len(prices))
	if len(prices) < 2 {
		return out
	}
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if math.IsNaN(prev) || math.IsNaN(prices[i]) || prev == 0 {
			continue
		}
		out[i] = prices[i]/prev - 1
	}
	return out
}

// AnnualizedRealizedVol computes a rolling annualized realized volatility:
// trailing sample std-dev of returns over `window` observations, scaled by
// sqrt(periodsPerYear). A reduced min-periods of window/2 allows partial
// estimates near the series start; if the whole series holds fewer than
// `window` usable returns the result is all-NaN.
func AnnualizedRealizedVol(rets []float64, window, periodsPerYear int) []float64 {
	if window <= 0 || periodsPerYear <= 0 {
		return stats.NaNs(len(rets))
	}
	if stats.FiniteCount(rets) < window {
		log.Debug().
			Int("usable", stats.FiniteCount(rets)).
			Int("window", window).
			Msg("realized vol: not enough returns for window")
		return stats.NaNs(len(rets))
	}
	minPeriods := window / 2
	if minPeriods < 1 {
		minPeriods = 1
	}
	vol := stats.RollingStd(rets, window, minPeriods)
	scale := math.Sqrt(float64(periodsPerYear))
	for i, v := range vol {
		if !math.IsNaN(v) {
			vol[i] = v * scale
		}
	}
	return vol
}

// fillNonPositive masks non-positive values as missing, forward-fills,
// then back-fills leading gaps.
func fillNonPositive(prices []float64) []float64 {
	clean := make([]float64, len(prices))
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			clean[i] = math.NaN()
		} else {
			clean[i] = p
		}
	}
	last := math.NaN()
	for i, p := range clean {
		if math.IsNaN(p) {
			clean[i] = last
		} else {
			last = p
		}
	}
	next := math.NaN()
	for i := len(clean) - 1; i >= 0; i-- {
		if math.IsNaN(clean[i]) {
			clean[i] = next
		} else {
			next = clean[i]
		}
	}
	return clean
}

// Finite strips NaN/Inf entries, preserving order.
func Finite(rets []float64) []float64 {
	out := make([]float64, 0, len(rets))
	for _, r := range rets {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			out = append(out, r)
		}
	}
	return out
}
