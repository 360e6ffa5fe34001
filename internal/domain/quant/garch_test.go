package quant

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitGarchForecastInsufficientData(t *testing.T) {
	rets := make([]float64, 50)
	for i := range rets {
		rets[i] = 0.01 * float64(i%3)
	}
	_, err := FitGarchForecast(rets, 365)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitGarchForecastConstantReturns(t *testing.T) {
	rets := make([]float64, 200)
	for i := range rets {
		rets[i] = 0.001
	}
	_, err := FitGarchForecast(rets, 365)
	require.Error(t, err, "zero-variance series must be rejected, not crash")
	assert.ErrorIs(t, err, ErrNoVariance)
}

func TestFitGarchForecastProducesAcceptedForecast(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rets := make([]float64, 300)
	for i := range rets {
		rets[i] = rng.NormFloat64() * 0.02
	}

	res, err := FitGarchForecast(rets, 365)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Greater(t, res.ForecastVolAnnualized, 0.0)
	assert.Greater(t, res.HistVolAnnualized, 0.0)
	// Acceptance predicate: forecast within [0.5x, 2x] of history, or the
	// historical fallback with ratio exactly 1.
	assert.GreaterOrEqual(t, res.VolRatio, 0.5)
	assert.LessOrEqual(t, res.VolRatio, 2.0)
	assert.Equal(t, 300, res.DataPoints)
	assert.NotEmpty(t, res.ModelType)
}

func TestFitGarchForecastIgnoresNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rets := make([]float64, 320)
	for i := range rets {
		if i%16 == 0 {
			rets[i] = math.NaN()
		} else {
			rets[i] = rng.NormFloat64() * 0.015
		}
	}
	res, err := FitGarchForecast(rets, 365)
	require.NoError(t, err)
	assert.Equal(t, 300, res.DataPoints, "NaN entries are excluded before fitting")
}

func TestFitConstantVariance(t *testing.T) {
	v, err := fitConstantVariance([]float64{1, -1, 1, -1})
	require.NoError(t, err)
	// Sample variance of +-1 with ddof=1.
	assert.InDelta(t, 4.0/3.0, v, 1e-12)
}

func TestGarchParamsConstraints(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
	}{
		{"centered", []float64{0, 0, 0, 0}},
		{"extreme", []float64{1, 5, 3, 4}},
		{"negative", []float64{-1, -10, -3, -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, omega, alpha, beta := garchParams(tt.x)
			assert.Greater(t, omega, 0.0)
			assert.GreaterOrEqual(t, alpha, 0.0)
			assert.GreaterOrEqual(t, beta, 0.0)
			assert.Less(t, alpha+beta, 1.0, "stationarity constraint")
		})
	}
}

func TestConditionalVariancesSeedAndFloor(t *testing.T) {
	scaled := []float64{1, -2, 3, -1, 2}
	h, e := conditionalVariances(scaled, 0, 0.1, 0.1, 0.8)
	require.Len(t, h, 5)
	require.Len(t, e, 5)
	for _, v := range h {
		assert.Greater(t, v, 0.0, "variance path stays positive")
	}
	assert.InDelta(t, scaled[0], e[0], 1e-12)
}

func TestHistoricalVaRCVaR(t *testing.T) {
	rets := make([]float64, 100)
	for i := range rets {
		rets[i] = 0.001
	}
	// Ten distinct losses form the tail: -10%, -9%, ..., -1%.
	for i := 0; i < 10; i++ {
		rets[i] = -0.10 + 0.01*float64(i)
	}

	varLoss, cvarLoss, ok := HistoricalVaRCVaR(rets, 0.95)
	require.True(t, ok)
	assert.Greater(t, varLoss, 0.0)
	assert.GreaterOrEqual(t, cvarLoss, varLoss, "expected shortfall is at least VaR")
}

func TestHistoricalVaRCVaRTooFewPoints(t *testing.T) {
	_, _, ok := HistoricalVaRCVaR([]float64{0.01, -0.01}, 0.95)
	assert.False(t, ok)
}
