package returns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPreservesLength(t *testing.T) {
	prices := []float64{100, 110, 105, 120}
	rets := Log(prices)

	require.Len(t, rets, len(prices), "return series must align with the price series")
	assert.True(t, math.IsNaN(rets[0]), "first return has no predecessor")
	assert.InDelta(t, math.Log(110.0/100.0), rets[1], 1e-12)
	assert.InDelta(t, math.Log(105.0/110.0), rets[2], 1e-12)
	assert.InDelta(t, math.Log(120.0/105.0), rets[3], 1e-12)
}

func TestLogFillsNonPositivePrices(t *testing.T) {
	// A zero price is masked and forward-filled before differencing, so
	// no return is computed against it.
	prices := []float64{100, 0, 105, 110}
	rets := Log(prices)

	require.Len(t, rets, 4)
	for _, r := range rets[1:] {
		assert.False(t, math.IsInf(r, 0), "no infinite returns from zero prices")
	}
	// The filled series is {100, 100, 105, 110}.
	assert.InDelta(t, 0.0, rets[1], 1e-12)
	assert.InDelta(t, math.Log(105.0/100.0), rets[2], 1e-12)
}

func TestLogAllBadPrices(t *testing.T) {
	rets := Log([]float64{0, -1, math.NaN()})
	require.Len(t, rets, 3)
	for _, r := range rets {
		assert.True(t, math.IsNaN(r))
	}
}

func TestSimple(t *testing.T) {
	rets := Simple([]float64{100, 110, 99})
	require.Len(t, rets, 3)
	assert.True(t, math.IsNaN(rets[0]))
	assert.InDelta(t, 0.10, rets[1], 1e-12)
	assert.InDelta(t, -0.10, rets[2], 1e-12)
}

func TestAnnualizedRealizedVolNeedsWindow(t *testing.T) {
	short := make([]float64, 10)
	out := AnnualizedRealizedVol(short, 20, 365)
	for _, v := range out {
		assert.True(t, math.IsNaN(v), "short series yields no volatility estimate")
	}
}

func TestAnnualizedRealizedVolScales(t *testing.T) {
	// Alternating returns with known per-period std.
	rets := make([]float64, 40)
	rets[0] = math.NaN()
	for i := 1; i < len(rets); i++ {
		if i%2 == 0 {
			rets[i] = 0.01
		} else {
			rets[i] = -0.01
		}
	}
	out := AnnualizedRealizedVol(rets, 20, 365)
	last := out[len(out)-1]
	require.False(t, math.IsNaN(last))

	perPeriod := 0.01 * math.Sqrt(20.0/19.0) // sample std of +-1% over 20 obs
	assert.InDelta(t, perPeriod*math.Sqrt(365), last, 1e-3)
}

func TestFinite(t *testing.T) {
	out := Finite([]float64{1, math.NaN(), math.Inf(-1), 2})
	assert.Equal(t, []float64{1, 2}, out)
}
