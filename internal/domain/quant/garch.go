package quant

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/optimize"

	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
)

// Errors surfaced by the volatility model chain.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoVariance       = errors.New("returns have no variance")
	ErrModelFit         = errors.New("all volatility model candidates failed")
)

// garchMinPoints is the floor for conditional-volatility model fitting.
const garchMinPoints = 100

// GarchResult is the accepted one-step-ahead volatility forecast.
type GarchResult struct {
	ForecastVolAnnualized float64
	HistVolAnnualized     float64
	VolRatio              float64
	ModelType             string
	ModelConfig           string
	Fallback              bool
	DataPoints            int
}

// garchCandidate pairs a model spec with its fitting function. Candidates
// are tried strictly in order and the chain short-circuits on the first
// forecast that passes the acceptance predicate.
type garchCandidate struct {
	modelType string
	config    string
	fit       func(scaled []float64) (varianceForecast float64, err error)
}

// FitGarchForecast fits a sequence of conditional-volatility candidates
// (GARCH(1,1) normal, GARCH(1,1) Student-t, ARCH(1) normal, constant
// variance) against the return series and returns the first forecast whose
// annualized one-step volatility lands within [0.5x, 2x] of trailing
// historical volatility. When every candidate is rejected the historical
// volatility itself is returned with Fallback set. Returns are scaled x100
// and tail-clipped at the 0.1%/99.9% quantiles before fitting.
func FitGarchForecast(rets []float64, periodsPerYear int) (*GarchResult, error) {
	clean := finite(rets)
	if len(clean) < garchMinPoints {
		return nil, fmt.Errorf("%w: %d returns, need %d", ErrInsufficientData, len(clean), garchMinPoints)
	}
	if stats.StdDev(clean) < 1e-8 {
		return nil, ErrNoVariance
	}

	lo := stats.Quantile(clean, 0.001)
	hi := stats.Quantile(clean, 0.999)
	clipped := stats.Clip(clean, lo, hi)

	scaled := make([]float64, len(clipped))
	for i, r := range clipped {
		scaled[i] = r * 100
	}

	histVolAnnual := stats.StdDev(clipped) * math.Sqrt(float64(periodsPerYear))

	candidates := []garchCandidate{
		{"GARCH", "GARCH(1,1) with Constant mean, normal dist", fitGarchNormal},
		{"GARCH", "GARCH(1,1) with Constant mean, t dist", fitGarchStudentT},
		{"ARCH", "ARCH(1) with Constant mean, normal dist", fitArchNormal},
		{"ConstantVariance", "ConstantVariance with Constant mean", fitConstantVariance},
	}

	for _, cand := range candidates {
		varForecast, err := cand.fit(scaled)
		if err != nil {
			log.Debug().Str("model", cand.config).Err(err).Msg("volatility candidate failed")
			continue
		}
		condVolAnnual := math.Sqrt(varForecast) / 100 * math.Sqrt(float64(periodsPerYear))
		ratio := 1.0
		if histVolAnnual > 0 {
			ratio = condVolAnnual / histVolAnnual
		}
		if ratio < 0.5 || ratio > 2.0 {
			log.Debug().Str("model", cand.config).Float64("ratio", ratio).Msg("volatility forecast outside acceptance band")
			continue
		}
		log.Info().Str("model", cand.config).Float64("vol_ratio", ratio).Msg("volatility model accepted")
		return &GarchResult{
			ForecastVolAnnualized: condVolAnnual,
			HistVolAnnualized:     histVolAnnual,
			VolRatio:              ratio,
			ModelType:             cand.modelType,
			ModelConfig:           cand.config,
			DataPoints:            len(clean),
		}, nil
	}

	if histVolAnnual > 0 {
		log.Info().Msg("using historical volatility fallback")
		return &GarchResult{
			ForecastVolAnnualized: histVolAnnual,
			HistVolAnnualized:     histVolAnnual,
			VolRatio:              1.0,
			ModelType:             "Historical",
			ModelConfig:           "Historical volatility fallback",
			Fallback:              true,
			DataPoints:            len(clean),
		}, nil
	}
	return nil, ErrModelFit
}

// garchParams maps an unconstrained optimizer vector to valid GARCH
// parameters: omega > 0, alpha, beta > 0, alpha+beta < 1.
func garchParams(x []float64) (mu, omega, alpha, beta float64) {
	mu = x[0]
	omega = math.Exp(x[1])
	ea := math.Exp(x[2])
	eb := 0.0
	if len(x) > 3 {
		eb = math.Exp(x[3])
	}
	den := 1 + ea + eb
	alpha = ea / den
	beta = eb / den
	return mu, omega, alpha, beta
}

// conditionalVariances runs the GARCH recursion, seeding with the sample
// variance. Returns the per-period variances and residuals.
func conditionalVariances(scaled []float64, mu, omega, alpha, beta float64) (h, e []float64) {
	n := len(scaled)
	h = make([]float64, n)
	e = make([]float64, n)
	v0 := stats.Variance(scaled)
	if v0 <= 0 || math.IsNaN(v0) {
		v0 = 1e-6
	}
	h[0] = v0
	e[0] = scaled[0] - mu
	for t := 1; t < n; t++ {
		e[t] = scaled[t] - mu
		h[t] = omega + alpha*e[t-1]*e[t-1] + beta*h[t-1]
		if h[t] < 1e-12 {
			h[t] = 1e-12
		}
	}
	return h, e
}

func fitGarchNormal(scaled []float64) (float64, error) {
	return fitGarchMLE(scaled, true, false)
}

func fitGarchStudentT(scaled []float64) (float64, error) {
	return fitGarchMLE(scaled, true, true)
}

func fitArchNormal(scaled []float64) (float64, error) {
	return fitGarchMLE(scaled, false, false)
}

// fitGarchMLE maximizes the (possibly Student-t) likelihood with
// Nelder-Mead over an unconstrained reparameterization.
func fitGarchMLE(scaled []float64, withBeta, studentT bool) (float64, error) {
	mean := stats.Mean(scaled)
	variance := stats.Variance(scaled)
	if variance <= 0 {
		return 0, ErrNoVariance
	}

	negLL := func(x []float64) float64 {
		mu, omega, alpha, beta := garchParams(x)
		if !withBeta {
			beta = 0
		}
		var nu float64
		if studentT {
			nu = 2 + math.Exp(x[len(x)-1])
		}
		h, e := conditionalVariances(scaled, mu, omega, alpha, beta)
		ll := 0.0
		for t := range h {
			if studentT {
				ll += studentTLogDensity(e[t], h[t], nu)
			} else {
				ll += -0.5 * (math.Log(2*math.Pi*h[t]) + e[t]*e[t]/h[t])
			}
		}
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.Inf(1)
		}
		return -ll
	}

	// Start near alpha=0.05, beta=0.90 with omega matching the
	// unconditional variance.
	x0 := []float64{mean, math.Log(variance * 0.05), 0}
	if withBeta {
		x0 = append(x0, math.Log(18.0))
	}
	if studentT {
		x0 = append(x0, math.Log(6.0)) // nu ~ 8
	}

	result, err := optimize.Minimize(optimize.Problem{Func: negLL}, x0, &optimize.Settings{
		MajorIterations: 1000,
	}, &optimize.NelderMead{})
	if err != nil {
		return 0, fmt.Errorf("optimizer: %w", err)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return 0, errors.New("likelihood did not converge")
	}

	mu, omega, alpha, beta := garchParams(result.X)
	if !withBeta {
		beta = 0
	}
	h, e := conditionalVariances(scaled, mu, omega, alpha, beta)
	last := len(h) - 1
	forecast := omega + alpha*e[last]*e[last] + beta*h[last]
	if forecast <= 0 || math.IsNaN(forecast) || math.IsInf(forecast, 0) {
		return 0, errors.New("invalid variance forecast")
	}
	return forecast, nil
}

// fitConstantVariance always succeeds: the forecast is the sample variance.
func fitConstantVariance(scaled []float64) (float64, error) {
	v := stats.Variance(scaled)
	if v <= 0 || math.IsNaN(v) {
		return 0, ErrNoVariance
	}
	return v, nil
}

// studentTLogDensity is the log density of a standardized Student-t with
// unit variance, scaled to conditional variance h.
func studentTLogDensity(e, h, nu float64) float64 {
	lg1, _ := math.Lgamma((nu + 1) / 2)
	lg2, _ := math.Lgamma(nu / 2)
	return lg1 - lg2 -
		0.5*math.Log(math.Pi*(nu-2)) -
		0.5*math.Log(h) -
		(nu+1)/2*math.Log(1+e*e/(h*(nu-2)))
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
