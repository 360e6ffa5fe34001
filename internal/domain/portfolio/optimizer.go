package portfolio

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// Optimization objectives.
const (
	ObjectiveMaximizeSharpe     = "maximize_sharpe"
	ObjectiveMinimizeVolatility = "minimize_volatility"
	ObjectiveMaximizeReturn     = "maximize_return"
)

var (
	ErrUnsupportedObjective = errors.New("unsupported optimization objective")
	ErrNoSolution           = errors.New("optimizer found no usable allocation")
)

// Options tune a single optimization run.
type Options struct {
	// Objective selects the optimization target; defaults to maximize_sharpe.
	Objective string
	// RiskFreeRate is annualized; defaults to 2%.
	RiskFreeRate float64
	// TargetReturn, when set under minimize_volatility, pins the portfolio
	// to that annualized return on the efficient frontier.
	TargetReturn *float64
	// MaxIterations bounds the solver; defaults to 500.
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.Objective == "" {
		o.Objective = ObjectiveMaximizeSharpe
	}
	if o.RiskFreeRate == 0 {
		o.RiskFreeRate = 0.02
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 500
	}
	return o
}

// Result is one optimized allocation with its risk metrics. Weights holds
// only assets above the allocation floor, renormalized to sum to one;
// every metric is computed over the full asset set with zero weight on
// the dropped names.
type Result struct {
	Objective            string                        `json:"objective"`
	Weights              map[string]float64            `json:"weights"`
	ExpectedAnnualReturn float64                       `json:"expected_annual_return"`
	AnnualVolatility     float64                       `json:"annual_volatility"`
	SharpeRatio          float64                       `json:"sharpe_ratio"`
	CVaR95               *float64                      `json:"cvar_95_historical_period"`
	MaxDrawdown          float64                       `json:"max_drawdown"`
	SortinoRatio         float64                       `json:"sortino_ratio"`
	CalmarRatio          float64                       `json:"calmar_ratio"`
	OptimizedCovariance  map[string]map[string]float64 `json:"covariance_matrix_optimized"`
	TotalAssets          int                           `json:"total_assets_considered"`
	AssetsWithAllocation int                           `json:"assets_with_allocation"`
}

// minWeight is the allocation floor below which a weight is dropped and
// the remainder renormalized.
const minWeight = 0.001

// Optimize runs a long-only mean-variance optimization over the inputs.
// Weights live on the probability simplex: they sum to one and no short
// positions are allowed. maximize_return skips the solver entirely and
// allocates everything to the highest expected return.
func Optimize(in *Inputs, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	n := len(in.Assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNoSolution)
	}

	perf := func(w []float64) (ret, vol float64) {
		wv := mat.NewVecDense(n, w)
		ret = mat.Dot(mat.NewVecDense(n, in.ExpectedReturns), wv)
		var tmp mat.VecDense
		tmp.MulVec(in.Covariance, wv)
		vol = math.Sqrt(mat.Dot(wv, &tmp))
		return ret, vol
	}

	var weights []float64
	switch opts.Objective {
	case ObjectiveMaximizeReturn:
		// Long-only with a sum-to-one budget: the optimum is all-in on
		// the highest expected return.
		weights = make([]float64, n)
		weights[argmax(in.ExpectedReturns)] = 1.0
		log.Info().Str("asset", in.Assets[argmax(in.ExpectedReturns)]).Msg("allocating fully to highest expected return")

	case ObjectiveMaximizeSharpe:
		weights = solve(func(w []float64) float64 {
			ret, vol := perf(w)
			if vol == 0 {
				if ret-opts.RiskFreeRate > 0 {
					return math.Inf(-1)
				}
				return math.Inf(1)
			}
			return -(ret - opts.RiskFreeRate) / vol
		}, n, opts.MaxIterations)

	case ObjectiveMinimizeVolatility:
		obj := func(w []float64) float64 {
			_, vol := perf(w)
			return vol
		}
		if opts.TargetReturn != nil {
			target := *opts.TargetReturn
			log.Info().Float64("target_return", target).Msg("pinning volatility minimization to target return")
			obj = func(w []float64) float64 {
				ret, vol := perf(w)
				diff := ret - target
				// Quadratic penalty standing in for the equality constraint.
				return vol + 1e3*diff*diff
			}
		}
		weights = solve(obj, n, opts.MaxIterations)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObjective, opts.Objective)
	}

	if weights == nil {
		if opts.Objective == ObjectiveMaximizeReturn {
			weights = make([]float64, n)
			weights[argmax(in.ExpectedReturns)] = 1.0
		} else {
			return nil, ErrNoSolution
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 1e-6 {
		return nil, ErrNoSolution
	}
	for i := range weights {
		weights[i] /= total
	}

	// Drop dust allocations and renormalize the survivors.
	kept := map[string]float64{}
	keptSum := 0.0
	for i, w := range weights {
		if w >= minWeight {
			kept[in.Assets[i]] = w
			keptSum += w
		}
	}
	if len(kept) == 0 {
		var best int
		if opts.Objective != ObjectiveMinimizeVolatility {
			best = argmax(in.ExpectedReturns)
		} else {
			best = argmax(weights)
		}
		log.Warn().Str("asset", in.Assets[best]).Msg("all weights below floor, falling back to single asset")
		kept = map[string]float64{in.Assets[best]: 1.0}
		keptSum = 1.0
	}
	for a := range kept {
		kept[a] /= keptSum
	}

	full := make([]float64, n)
	for i, asset := range in.Assets {
		full[i] = kept[asset]
	}

	ret, vol := perf(full)
	sharpe := 0.0
	if vol > 1e-9 {
		sharpe = (ret - opts.RiskFreeRate) / vol
	}

	res := &Result{
		Objective:            opts.Objective,
		Weights:              kept,
		ExpectedAnnualReturn: ret,
		AnnualVolatility:     vol,
		SharpeRatio:          sharpe,
		OptimizedCovariance:  covSubset(in, kept),
		TotalAssets:          n,
		AssetsWithAllocation: len(kept),
	}

	if in.PeriodReturns != nil {
		portfolioReturns := portfolioPeriodReturns(in.PeriodReturns, full)
		if len(portfolioReturns) > 0 {
			res.MaxDrawdown = MaxDrawdown(portfolioReturns)
			res.SortinoRatio = SortinoRatio(portfolioReturns, opts.RiskFreeRate, in.PeriodsPerYear)
			res.CalmarRatio = CalmarRatio(ret, res.MaxDrawdown)
			if cvar, ok := HistoricalCVaR(portfolioReturns, 0.95); ok {
				res.CVaR95 = &cvar
			} else {
				log.Warn().Msg("tail too thin for historical CVaR")
			}
		}
	}

	log.Info().
		Str("objective", opts.Objective).
		Int("assets", len(kept)).
		Float64("expected_return", ret).
		Float64("volatility", vol).
		Msg("portfolio optimized")
	return res, nil
}

// solve runs the projected-gradient solver from an equal-weight start.
func solve(obj func([]float64) float64, n, maxIters int) []float64 {
	x0 := make([]float64, n)
	for i := range x0 {
		x0[i] = 1.0 / float64(n)
	}
	w, ok := minimizeOnSimplex(obj, x0, maxIters)
	if !ok {
		return nil
	}
	return w
}

func portfolioPeriodReturns(period *mat.Dense, weights []float64) []float64 {
	rows, _ := period.Dims()
	var out mat.VecDense
	out.MulVec(period, mat.NewVecDense(len(weights), weights))
	rets := make([]float64, rows)
	for i := range rets {
		rets[i] = out.AtVec(i)
	}
	return rets
}

func covSubset(in *Inputs, kept map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(kept))
	for i, a := range in.Assets {
		if _, ok := kept[a]; !ok {
			continue
		}
		row := make(map[string]float64)
		for j, b := range in.Assets {
			if _, ok := kept[b]; ok {
				row[b] = in.Covariance.At(i, j)
			}
		}
		out[a] = row
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
