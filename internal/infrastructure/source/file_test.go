package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
)

const candleJSON = `[
	{"timestamp": 1700086400, "open": 102, "high": 103, "low": 101, "close": 102.5, "volume": 900},
	{"timestamp": 1700000000, "open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 1000}
]`

func TestFileSourcePrefersTimeframeDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "daily"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "daily", "WETH-USDC.json"), []byte(candleJSON), 0o644))

	src := NewFileSource(dir)
	series, err := src.Candles(context.Background(), pipeline.Asset{Symbol: "WETH-USDC"}, "daily")
	require.NoError(t, err)
	require.Len(t, series, 2)

	// Loaded candles come back sorted by timestamp.
	assert.Equal(t, int64(1700000000), series[0].Timestamp)
	assert.Equal(t, 102.5, series[1].Close)
}

func TestFileSourceFallsBackToFlatLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "WBTC-USDC.json"), []byte(candleJSON), 0o644))

	src := NewFileSource(dir)
	series, err := src.Candles(context.Background(), pipeline.Asset{Symbol: "WBTC-USDC"}, "daily")
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestFileSourceMissingAsset(t *testing.T) {
	src := NewFileSource(t.TempDir())
	_, err := src.Candles(context.Background(), pipeline.Asset{Symbol: "GHOST-USDC"}, "daily")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSourceCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD-USDC.json"), []byte("not json"), 0o644))

	src := NewFileSource(dir)
	_, err := src.Candles(context.Background(), pipeline.Asset{Symbol: "BAD-USDC"}, "daily")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileSourceCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewFileSource(t.TempDir())
	_, err := src.Candles(ctx, pipeline.Asset{Symbol: "WETH-USDC"}, "daily")
	assert.ErrorIs(t, err, context.Canceled)
}
