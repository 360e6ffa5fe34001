// Package source provides candle history backends for the pipeline: a
// JSON file source plus Redis read-through and circuit-breaker wrappers.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/market"
)

// ErrNotFound fires when no candle file exists for an asset.
var ErrNotFound = errors.New("no candle history for asset")

// FileSource serves candle histories from JSON files on disk. Files live
// at <dir>/<timeframe>/<symbol>.json, falling back to <dir>/<symbol>.json,
// each holding an array of candles.
type FileSource struct {
	dir string
}

// NewFileSource serves candles from the given directory.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Candles implements pipeline.CandleSource.
func (f *FileSource) Candles(ctx context.Context, asset pipeline.Asset, timeframe string) (market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := []string{
		filepath.Join(f.dir, timeframe, asset.Symbol+".json"),
		filepath.Join(f.dir, asset.Symbol+".json"),
	}
	var data []byte
	var err error
	for _, path := range paths {
		data, err = os.ReadFile(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, asset.Symbol, timeframe)
	}

	var series market.Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decode candles for %s: %w", asset.Symbol, err)
	}
	series.SortByTime()

	log.Debug().
		Str("asset", asset.Symbol).
		Int("candles", len(series)).
		Msg("loaded candle file")
	return series, nil
}
