package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		rets []float64
		want float64
	}{
		{"empty", nil, 0},
		{"all gains", []float64{0.01, 0.02, 0.03}, 0},
		{"single crash", []float64{0.10, -0.50, 0.20}, 0.50},
		{"dip after peak", []float64{0.10, -0.20, 0.05}, 0.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.rets), 1e-9)
		})
	}
}

func TestSortinoRatioSentinel(t *testing.T) {
	// All returns above the per-period risk-free rate: no downside
	// observations, positive excess return, sentinel branch.
	rets := []float64{0.01, 0.02, 0.015, 0.01}
	assert.Equal(t, 100.0, SortinoRatio(rets, 0.02, 365))
}

func TestSortinoRatioNegativeReturns(t *testing.T) {
	rets := []float64{-0.01, -0.02, -0.01, -0.03}
	ratio := SortinoRatio(rets, 0.02, 365)
	assert.Less(t, ratio, 0.0, "losing portfolio has a negative Sortino")
}

func TestSortinoRatioEmpty(t *testing.T) {
	assert.Zero(t, SortinoRatio(nil, 0.02, 365))
	assert.Zero(t, SortinoRatio([]float64{0.01}, 0.02, 0))
}

func TestCalmarRatio(t *testing.T) {
	assert.InDelta(t, 2.0, CalmarRatio(0.40, 0.20), 1e-12)
	// Zero drawdown with positive returns hits the sentinel.
	assert.Equal(t, 100.0, CalmarRatio(0.40, 0))
	assert.Zero(t, CalmarRatio(-0.10, 0))
}

func TestHistoricalCVaRTail(t *testing.T) {
	rets := make([]float64, 100)
	for i := range rets {
		rets[i] = 0.001
	}
	for i := 0; i < 10; i++ {
		rets[i] = -0.10 + 0.01*float64(i)
	}
	cvar, ok := HistoricalCVaR(rets, 0.95)
	assert.True(t, ok)
	assert.Less(t, cvar, -0.05, "tail mean sits in the worst losses")
}

func TestNonNegativeReturnsGiveCalmarSentinel(t *testing.T) {
	rets := []float64{0.0, 0.01, 0.02, 0.0, 0.03}
	dd := MaxDrawdown(rets)
	assert.Zero(t, dd)
	assert.Equal(t, 100.0, CalmarRatio(0.10, dd))
}
