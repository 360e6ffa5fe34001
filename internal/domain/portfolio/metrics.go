package portfolio

import (
	"math"

	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
)

// ratioSentinel stands in for an effectively infinite Sortino or Calmar
// ratio when the denominator degenerates with positive returns.
const ratioSentinel = 100.0

// MaxDrawdown returns the largest peak-to-trough loss of the compounded
// return path as a positive fraction.
func MaxDrawdown(periodReturns []float64) float64 {
	if len(periodReturns) == 0 {
		return 0
	}
	equity := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, r := range periodReturns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (equity - peak) / peak; dd < worst {
			worst = dd
		}
	}
	if math.IsNaN(worst) {
		return 0
	}
	return math.Abs(worst)
}

// SortinoRatio computes the annualized Sortino ratio against the given
// annual risk-free rate. Downside deviation uses only periods returning
// below the per-period risk-free rate; when there is no downside (or no
// downside dispersion) and returns beat the risk-free rate, the sentinel
// value 100 is returned.
func SortinoRatio(periodReturns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(periodReturns) == 0 || periodsPerYear == 0 {
		return 0
	}
	factor := float64(periodsPerYear)
	annualReturn := stats.Mean(periodReturns) * factor
	periodRF := riskFreeRate / factor

	var downside []float64
	for _, r := range periodReturns {
		if r < periodRF {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if annualReturn > riskFreeRate {
			return ratioSentinel
		}
		return 0
	}

	downsideDev := stats.PopStdDev(downside) * math.Sqrt(factor)
	if downsideDev == 0 {
		if annualReturn > riskFreeRate {
			return ratioSentinel
		}
		return 0
	}

	ratio := (annualReturn - riskFreeRate) / downsideDev
	if math.IsNaN(ratio) {
		return 0
	}
	return ratio
}

// CalmarRatio divides annual return by maximum drawdown, substituting
// the sentinel when the drawdown is (near) zero with positive returns.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown > 1e-9 {
		return annualReturn / maxDrawdown
	}
	if annualReturn > 0 {
		return ratioSentinel
	}
	return 0
}

// HistoricalCVaR returns the mean of the period returns at or below the
// (1-confidence) quantile. The result keeps its sign: a loss tail yields
// a negative value. ok is false when the tail is empty or degenerate.
func HistoricalCVaR(periodReturns []float64, confidence float64) (float64, bool) {
	q := stats.Quantile(periodReturns, 1-confidence)
	if math.IsNaN(q) {
		return 0, false
	}
	sum, n := 0.0, 0
	for _, r := range periodReturns {
		if !math.IsNaN(r) && r <= q {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	cvar := sum / float64(n)
	if math.IsNaN(cvar) {
		return 0, false
	}
	return cvar, true
}
