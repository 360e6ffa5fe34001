// Package portfolio builds mean-variance inputs from candle histories and
// optimizes long-only allocations under several objectives.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/elbarroca/eth-global-prague/internal/domain/market"
	"github.com/elbarroca/eth-global-prague/internal/domain/returns"
)

// ErrInsufficientAssets fires when fewer than two assets have usable
// return series; a covariance matrix needs at least two.
var ErrInsufficientAssets = errors.New("need at least two assets with return history")

// Inputs holds the annualized mean-variance inputs plus the aligned
// per-period return history the risk metrics are computed from.
type Inputs struct {
	// Assets in the column order of every other field.
	Assets []string
	// ExpectedReturns are annualized mean log returns.
	ExpectedReturns []float64
	// Covariance is the annualized sample covariance of log returns.
	Covariance *mat.SymDense
	// PeriodReturns holds one row per period and one column per asset,
	// aligned on the union of candle timestamps.
	PeriodReturns *mat.Dense
	// PeriodsPerYear is the annualization factor the inputs were built with.
	PeriodsPerYear int
}

// CalculateInputs derives expected returns and the covariance matrix from
// per-asset candle histories. Per-asset log returns are aligned on the
// union of their candle timestamps; gaps are forward-filled, then
// back-filled, then zeroed, so assets with different history lengths can
// still be optimized together.
func CalculateInputs(candles map[string]market.Series, periodsPerYear int) (*Inputs, error) {
	type assetReturns struct {
		symbol string
		byTS   map[int64]float64
	}

	var usable []assetReturns
	tsSet := make(map[int64]struct{})

	symbols := make([]string, 0, len(candles))
	for sym := range candles {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		series := candles[sym].Clone()
		series.SortByTime()
		closes := series.Closes()
		logRets := returns.Log(closes)

		byTS := make(map[int64]float64, len(series))
		for i := 1; i < len(series); i++ {
			if r := logRets[i]; !math.IsNaN(r) && !math.IsInf(r, 0) {
				byTS[series[i].Timestamp] = r
				tsSet[series[i].Timestamp] = struct{}{}
			}
		}
		if len(byTS) == 0 {
			log.Warn().Str("asset", sym).Msg("no usable returns, excluding from optimization inputs")
			continue
		}
		usable = append(usable, assetReturns{symbol: sym, byTS: byTS})
	}

	if len(usable) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientAssets, len(usable))
	}

	timestamps := make([]int64, 0, len(tsSet))
	for ts := range tsSet {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	nPeriods, nAssets := len(timestamps), len(usable)
	period := mat.NewDense(nPeriods, nAssets, nil)
	assets := make([]string, nAssets)
	for j, ar := range usable {
		assets[j] = ar.symbol
		col := make([]float64, nPeriods)
		for i, ts := range timestamps {
			if r, ok := ar.byTS[ts]; ok {
				col[i] = r
			} else {
				col[i] = math.NaN()
			}
		}
		fillGaps(col)
		period.SetCol(j, col)
	}

	factor := float64(periodsPerYear)
	expected := make([]float64, nAssets)
	for j := 0; j < nAssets; j++ {
		expected[j] = stat.Mean(mat.Col(nil, j, period), nil) * factor
	}

	cov := mat.NewSymDense(nAssets, nil)
	stat.CovarianceMatrix(cov, period, nil)
	for i := 0; i < nAssets; i++ {
		for j := i; j < nAssets; j++ {
			cov.SetSym(i, j, cov.At(i, j)*factor)
		}
	}

	log.Info().
		Int("assets", nAssets).
		Int("periods", nPeriods).
		Msg("calculated optimization inputs")

	return &Inputs{
		Assets:          assets,
		ExpectedReturns: expected,
		Covariance:      cov,
		PeriodReturns:   period,
		PeriodsPerYear:  periodsPerYear,
	}, nil
}

// fillGaps forward-fills NaN gaps, back-fills a leading NaN run, and
// zeroes anything still missing.
func fillGaps(xs []float64) {
	last := math.NaN()
	for i, x := range xs {
		if math.IsNaN(x) {
			xs[i] = last
		} else {
			last = x
		}
	}
	next := math.NaN()
	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) {
			xs[i] = next
		} else {
			next = xs[i]
		}
	}
	for i, x := range xs {
		if math.IsNaN(x) {
			xs[i] = 0
		}
	}
}
