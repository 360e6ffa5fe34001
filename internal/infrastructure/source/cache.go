package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/market"
)

// CachedSource is a Redis read-through cache in front of another candle
// source. Cache failures degrade to the inner source, never to an error.
type CachedSource struct {
	inner pipeline.CandleSource
	rdb   redis.Cmdable
	ttl   time.Duration
}

// NewCachedSource wraps inner with a Redis cache. A non-positive TTL
// defaults to five minutes.
func NewCachedSource(inner pipeline.CandleSource, rdb redis.Cmdable, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl}
}

// Candles implements pipeline.CandleSource.
func (c *CachedSource) Candles(ctx context.Context, asset pipeline.Asset, timeframe string) (market.Series, error) {
	key := cacheKey(asset, timeframe)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var series market.Series
		if err := json.Unmarshal(data, &series); err == nil {
			log.Debug().Str("asset", asset.Symbol).Msg("candle cache hit")
			return series, nil
		}
		log.Warn().Str("key", key).Msg("corrupt cache entry, refetching")
	} else if err != redis.Nil {
		log.Warn().Err(err).Msg("candle cache read failed, falling through")
	}

	series, err := c.inner.Candles(ctx, asset, timeframe)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(series); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("candle cache write failed")
		}
	}
	return series, nil
}

func cacheKey(asset pipeline.Asset, timeframe string) string {
	return fmt.Sprintf("candles:%d:%s:%s", asset.ChainID, asset.Symbol, timeframe)
}
