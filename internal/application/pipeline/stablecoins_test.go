package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStablecoinPair(t *testing.T) {
	set := DefaultStablecoinSymbols()
	tests := []struct {
		symbol string
		want   bool
	}{
		{"USDC-USDT", true},
		{"EURA-USDC", true},
		{"USDS_2-USDC", true},
		{"USD+-USDC", true},
		{"DOLA-USDC", true},
		{"MAI-USDT", true},
		{"USDC.E-USDT", true},
		{"WETH-USDC", false},
		{"BTC-USDT", false},
		{"SOL-DAI", false},
		{"USDC", false}, // no separator
		{"SUSDE-USDC", true},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStablecoinPair(tt.symbol, set))
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "USDC", normalizeSymbol("usdc.e"))
	assert.Equal(t, "USDS", normalizeSymbol("USDS_2"))
	assert.Equal(t, "USDPLUS", normalizeSymbol("USD+"))
	assert.Equal(t, "MIMATIC", normalizeSymbol("MAI"))
	assert.Equal(t, "WETH", normalizeSymbol(" weth "))
}

func TestFilterStablecoinPairs(t *testing.T) {
	assets := []Asset{
		{Symbol: "WETH-USDC"},
		{Symbol: "USDC-USDT"},
		{Symbol: "WBTC-USDT"},
	}
	kept := FilterStablecoinPairs(assets, DefaultStablecoinSymbols())
	assert.Len(t, kept, 2)
	assert.Equal(t, "WETH-USDC", kept[0].Symbol)
	assert.Equal(t, "WBTC-USDT", kept[1].Symbol)
}
