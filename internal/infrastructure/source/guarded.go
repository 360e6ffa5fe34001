package source

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/market"
)

// GuardedSource protects a remote candle source with a rate limiter and
// a circuit breaker, so one failing upstream cannot stall a whole run.
type GuardedSource struct {
	inner   pipeline.CandleSource
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// GuardConfig tunes the protection around the inner source.
type GuardConfig struct {
	// RequestsPerSecond caps the fetch rate; zero disables limiting.
	RequestsPerSecond float64
	// Burst is the limiter burst size; defaults to 1 when limiting.
	Burst int
	// MaxFailures trips the breaker; defaults to 5 consecutive failures.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open; defaults to 30s.
	OpenTimeout time.Duration
}

// NewGuardedSource wraps inner with the configured guards.
func NewGuardedSource(inner pipeline.CandleSource, cfg GuardConfig) *GuardedSource {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "candle-source",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("candle source breaker state change")
		},
	})

	return &GuardedSource{inner: inner, breaker: breaker, limiter: limiter}
}

// Candles implements pipeline.CandleSource.
func (g *GuardedSource) Candles(ctx context.Context, asset pipeline.Asset, timeframe string) (market.Series, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Candles(ctx, asset, timeframe)
	})
	if err != nil {
		return nil, err
	}
	return out.(market.Series), nil
}
