package quant

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elbarroca/eth-global-prague/internal/domain/market"
	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
)

func buildSeries(closes, volumes []float64) market.Series {
	series := make(market.Series, len(closes))
	for i, c := range closes {
		vol := 1000.0
		if volumes != nil {
			vol = volumes[i]
		}
		series[i] = market.Candle{
			Timestamp: int64(1700000000 + i*86400),
			Open:      c,
			High:      c * 1.02,
			Low:       c * 0.98,
			Close:     c,
			Volume:    vol,
		}
	}
	return series
}

func typesOf(sigs []signal.Signal) map[string]bool {
	out := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		out[s.SignalType] = true
	}
	return out
}

func TestGenerateBelowMinCandles(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	sigs := Generate("TEST-USDC", 1, "0xabc", buildSeries(closes, nil), math.NaN(), 365)
	assert.Empty(t, sigs, "short series yields no quant signals and no panic")
}

func TestGenerateSignalInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	closes := make([]float64, 250)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * math.Exp(rng.NormFloat64()*0.02)
	}

	sigs := Generate("TEST-USDC", 1, "0xabc", buildSeries(closes, nil), math.NaN(), 365)
	for _, s := range sigs {
		assert.True(t, s.IsQuant(), "quant generator only emits QUANT_* types, got %s", s.SignalType)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
		assert.Equal(t, int64(1), s.ChainID)
		assert.Equal(t, "0xabc", s.BaseTokenAddress)
		for k, v := range s.Details {
			assert.False(t, math.IsNaN(v), "detail %s must be finite", k)
			assert.False(t, math.IsInf(v, 0), "detail %s must be finite", k)
		}
	}
}

func TestGenerateMeanReversionOverextendedHigh(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i))*0.5
	}
	closes[79] = 120 // far beyond two rolling std-devs of the 20-bar mean

	sigs := Generate("TEST-USDC", 1, "0xabc", buildSeries(closes, nil), math.NaN(), 365)
	types := typesOf(sigs)
	assert.True(t, types[TypeMeanRevertHigh], "a 20%% spike over a quiet base is overextended")
	assert.False(t, types[TypeMeanRevertLow])
}

func TestGenerateVolumeDrought(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	closes := make([]float64, 120)
	volumes := make([]float64, 120)
	closes[0] = 100
	volumes[0] = 1000
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * math.Exp(rng.NormFloat64()*0.01)
		volumes[i] = 1000 + rng.Float64()*100
	}
	volumes[119] = 10 // collapse on the latest bar

	sigs := Generate("TEST-USDC", 1, "0xabc", buildSeries(closes, volumes), math.NaN(), 365)
	types := typesOf(sigs)
	assert.True(t, types[TypeLiquidityVolumeDrought])
	assert.False(t, types[TypeLiquidityVolumeSpike])
}

func TestGenerateStrongUptrendRegime(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	closes := make([]float64, 150)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		// Drift strong enough that >70% of bars close higher.
		closes[i] = closes[i-1] * math.Exp(0.01+rng.NormFloat64()*0.004)
	}

	sigs := Generate("TEST-USDC", 1, "0xabc", buildSeries(closes, nil), math.NaN(), 365)
	types := typesOf(sigs)
	assert.True(t, types[TypeRegimeStrongUptrend])
	assert.False(t, types[TypeRegimeStrongDowntrend])
}

func TestGenerateSkipsInvalidPrice(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
	}
	series := buildSeries(closes, nil)
	series[79].Close = math.NaN()

	sigs := Generate("TEST-USDC", 1, "0xabc", series, math.NaN(), 365)
	assert.Empty(t, sigs)
}
