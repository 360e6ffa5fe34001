package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeededWithSMA(t *testing.T) {
	out := EMA([]float64{2, 4, 6, 8}, 2)
	require.Len(t, out, 4)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 3.0, out[1], 1e-12) // SMA seed
	// alpha = 2/3: 6*(2/3) + 3*(1/3) = 5
	assert.InDelta(t, 5.0, out[2], 1e-12)
	assert.InDelta(t, 7.0, out[3], 1e-12)
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	rsiUp := RSI(up, 14)
	assert.InDelta(t, 100.0, rsiUp[len(rsiUp)-1], 1e-9, "pure gains pin RSI at 100")

	rsiDown := RSI(down, 14)
	assert.InDelta(t, 0.0, rsiDown[len(rsiDown)-1], 1e-9, "pure losses pin RSI at 0")

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	rsiFlat := RSI(flat, 14)
	assert.InDelta(t, 50.0, rsiFlat[len(rsiFlat)-1], 1e-9, "no movement is neutral")
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*10
	}
	macd, sig, hist := MACD(closes, 12, 26, 9)
	require.Len(t, macd, 60)
	require.Len(t, sig, 60)
	require.Len(t, hist, 60)

	assert.True(t, math.IsNaN(macd[24]), "MACD needs the slow EMA warm-up")
	assert.False(t, math.IsNaN(macd[25]))
	assert.True(t, math.IsNaN(sig[32]), "signal line needs 9 valid MACD bars")
	assert.False(t, math.IsNaN(sig[33]))
	assert.InDelta(t, macd[59]-sig[59], hist[59], 1e-12)
}

func TestBollingerUsesPopulationStd(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%2) // alternating 100/101
	}
	upper, middle, lower := Bollinger(closes, 20, 2)
	n := len(closes)
	require.False(t, math.IsNaN(middle[n-1]))
	// Population std of an even 100/101 split is 0.5.
	assert.InDelta(t, middle[n-1]+1.0, upper[n-1], 1e-12)
	assert.InDelta(t, middle[n-1]-1.0, lower[n-1], 1e-12)
}

func TestStochasticFlatRangeIsNeutral(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := range highs {
		highs[i], lows[i], closes[i] = 100, 100, 100
	}
	k, d := Stochastic(highs, lows, closes, 14, 3, 3)
	assert.InDelta(t, 50.0, k[n-1], 1e-12)
	assert.InDelta(t, 50.0, d[n-1], 1e-12)
}
