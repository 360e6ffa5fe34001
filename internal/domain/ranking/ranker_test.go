package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
)

func sig(asset, sigType string, conf float64) signal.Signal {
	return signal.Signal{AssetSymbol: asset, SignalType: sigType, Confidence: conf}
}

func TestRankAssetsOrdersByScore(t *testing.T) {
	cfg := DefaultConfig()
	signals := map[string][]signal.Signal{
		"STRONG-USDC": {
			sig("STRONG-USDC", "QUANT_FOURIER_MEAN_REVERSION_BUY", 0.8),
			sig("STRONG-USDC", "TA_MACD_CROSS_BULLISH", 0.8),
		},
		"WEAK-USDC": {
			sig("WEAK-USDC", "QUANT_CVAR95_HIGH_RISK", 0.75),
			sig("WEAK-USDC", "TA_RSI_OVERBOUGHT", 0.7),
		},
	}

	ranked := RankAssets(signals, nil, cfg)
	require.Len(t, ranked, 2)
	assert.Equal(t, "STRONG-USDC", ranked[0].Asset)
	assert.Equal(t, "WEAK-USDC", ranked[1].Asset)
	assert.Greater(t, ranked[0].Score, 0.0)
	assert.Less(t, ranked[1].Score, 0.0)
}

func TestRankAssetsScoreComposition(t *testing.T) {
	cfg := DefaultConfig()
	signals := map[string][]signal.Signal{
		"A-USDC": {
			sig("A-USDC", "QUANT_MOMENTUM_HIGH_SHARPE", 0.7), // weight 1.5
			sig("A-USDC", "TA_MA_CROSS_BULLISH", 0.75),       // weight 1.3
		},
	}
	ranked := RankAssets(signals, nil, cfg)
	require.Len(t, ranked, 1)
	ra := ranked[0]

	// Weighted sum plus a 0.1 per distinct type from each family plus the
	// 0.2 both-families bonus.
	wantBase := 1.5*0.7 + 1.3*0.75
	wantDiversity := 0.1 + 0.1 + 0.2
	assert.InDelta(t, wantBase+wantDiversity, ra.Score, 1e-9)
	assert.InDelta(t, wantDiversity, ra.SignalDiversity, 1e-9)
	assert.Equal(t, 2, ra.NumBullish)
	assert.Equal(t, 0, ra.NumBearish)
	assert.InDelta(t, 0.75, ra.MaxBullishConf, 1e-9)
	// Average confidence is weighted by |weight|.
	assert.InDelta(t, (1.5*0.7+1.3*0.75)/(1.5+1.3), ra.AvgConfidence, 1e-9)
	// Quality is half the spread between the best bullish and bearish confidences.
	assert.InDelta(t, 0.75*0.5, ra.SignalQuality, 1e-9)
}

func TestRankAssetsIncludesSignallessUniverse(t *testing.T) {
	cfg := DefaultConfig()
	signals := map[string][]signal.Signal{
		"A-USDC": {sig("A-USDC", "QUANT_VOL_REGIME_LOW", 0.6)},
	}
	ranked := RankAssets(signals, []string{"A-USDC", "B-USDC", "C-USDC"}, cfg)
	require.Len(t, ranked, 3, "every universe member gets a row")

	assert.Equal(t, "A-USDC", ranked[0].Asset)
	for _, ra := range ranked[1:] {
		assert.Zero(t, ra.Score)
		assert.Zero(t, ra.NumSignals)
	}
}

func TestRankAssetsUnknownTypesScoreZero(t *testing.T) {
	cfg := DefaultConfig()
	signals := map[string][]signal.Signal{
		"A-USDC": {sig("A-USDC", "QUANT_SOMETHING_NOVEL", 0.9)},
	}
	ranked := RankAssets(signals, nil, cfg)
	require.Len(t, ranked, 1)
	// Unweighted types count toward the tally but not the score; with no
	// weighted signals there is no diversity bonus either.
	assert.Zero(t, ranked[0].Score)
	assert.Equal(t, 1, ranked[0].NumSignals)
}

func TestRankAssetsTieBreaksOnSymbol(t *testing.T) {
	cfg := DefaultConfig()
	ranked := RankAssets(nil, []string{"B-USDC", "A-USDC", "C-USDC"}, cfg)
	require.Len(t, ranked, 3)
	assert.Equal(t, "A-USDC", ranked[0].Asset)
	assert.Equal(t, "B-USDC", ranked[1].Asset)
	assert.Equal(t, "C-USDC", ranked[2].Asset)
}

func TestRankAssetsEmpty(t *testing.T) {
	assert.Nil(t, RankAssets(nil, nil, DefaultConfig()))
}
