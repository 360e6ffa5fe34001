// Package pipeline orchestrates the screening run: candle retrieval,
// concurrent signal generation, asset ranking and portfolio optimization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/domain/market"
	"github.com/elbarroca/eth-global-prague/internal/domain/portfolio"
	"github.com/elbarroca/eth-global-prague/internal/domain/quant"
	"github.com/elbarroca/eth-global-prague/internal/domain/ranking"
	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
	"github.com/elbarroca/eth-global-prague/internal/domain/ta"
	"github.com/elbarroca/eth-global-prague/internal/telemetry"
)

var (
	ErrNoAssets  = errors.New("no assets to screen after filtering")
	ErrNoSignals = errors.New("no signals generated for any asset")
)

// Asset identifies one tradable pair to screen.
type Asset struct {
	Symbol            string `json:"asset_symbol" yaml:"asset_symbol"`
	ChainID           int64  `json:"chain_id" yaml:"chain_id"`
	BaseTokenAddress  string `json:"base_token_address" yaml:"base_token_address"`
	QuoteTokenAddress string `json:"quote_token_address" yaml:"quote_token_address"`
}

// CandleSource supplies candle history for an asset. Implementations
// wrap the OHLCV database, a cache, or fixture files.
type CandleSource interface {
	Candles(ctx context.Context, asset Asset, timeframe string) (market.Series, error)
}

// SignalRecord is one generated signal stamped with run metadata for
// persistence.
type SignalRecord struct {
	signal.Signal
	BatchID           string `db:"batch_id"`
	Timeframe         string `db:"timeframe"`
	ForecastTimestamp int64  `db:"forecast_ts"`
	DataTimestamp     int64  `db:"data_ts"`
}

// SignalStore persists generated signals. Failures are logged and do not
// abort the run.
type SignalStore interface {
	SaveSignals(ctx context.Context, records []SignalRecord) error
}

// PortfolioStore persists optimized portfolios.
type PortfolioStore interface {
	SavePortfolio(ctx context.Context, batchID string, result *portfolio.Result) error
}

// Config tunes a pipeline run.
type Config struct {
	Timeframe      string   `yaml:"timeframe"`
	Objective      string   `yaml:"objective"`
	RiskFreeRate   float64  `yaml:"risk_free_rate"`
	PeriodsPerYear int      `yaml:"periods_per_year"`
	TargetReturn   *float64 `yaml:"target_return,omitempty"`
	Workers        int      `yaml:"workers"`
	// AlternativeObjectives also optimizes every other objective so the
	// report can compare allocations side by side.
	AlternativeObjectives bool `yaml:"alternative_objectives"`
}

func (c Config) withDefaults() Config {
	if c.Timeframe == "" {
		c.Timeframe = "daily"
	}
	if c.Objective == "" {
		c.Objective = portfolio.ObjectiveMaximizeSharpe
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = 0.02
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 365
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Result is the full output of one screening run.
type Result struct {
	BatchID        string                        `json:"batch_id"`
	RankedAssets   []ranking.RankedAsset         `json:"ranked_assets"`
	Signals        map[string][]signal.Signal    `json:"signals"`
	Portfolio      *portfolio.Result             `json:"optimized_portfolio"`
	Alternatives   map[string]*portfolio.Result  `json:"alternative_portfolios,omitempty"`
	SelectedAssets []string                      `json:"selected_for_portfolio"`
	TotalAssets    int                           `json:"total_assets_considered"`
	Duration       time.Duration                 `json:"duration"`
}

// Pipeline wires the screening stages together.
type Pipeline struct {
	source      CandleSource
	signalStore SignalStore
	portStore   PortfolioStore
	metrics     *telemetry.Metrics
	ranking     ranking.Config
	stablecoins map[string]struct{}
	cfg         Config
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithSignalStore persists generated signals after each run.
func WithSignalStore(s SignalStore) Option { return func(p *Pipeline) { p.signalStore = s } }

// WithPortfolioStore persists optimized portfolios after each run.
func WithPortfolioStore(s PortfolioStore) Option { return func(p *Pipeline) { p.portStore = s } }

// WithMetrics instruments the pipeline with Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithRankingConfig overrides the default signal weight tables.
func WithRankingConfig(cfg ranking.Config) Option { return func(p *Pipeline) { p.ranking = cfg } }

// WithStablecoins overrides the default stablecoin symbol set.
func WithStablecoins(set map[string]struct{}) Option {
	return func(p *Pipeline) { p.stablecoins = set }
}

// New builds a pipeline over the given candle source.
func New(source CandleSource, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		ranking:     ranking.DefaultConfig(),
		stablecoins: DefaultStablecoinSymbols(),
		cfg:         cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type assetOutcome struct {
	asset   Asset
	series  market.Series
	signals []signal.Signal
}

// Run executes the full screening pipeline over the candidate assets.
func (p *Pipeline) Run(ctx context.Context, assets []Asset) (*Result, error) {
	start := time.Now()
	batchID := uuid.New().String()
	logger := log.With().Str("batch_id", batchID).Logger()

	if p.metrics != nil {
		p.metrics.ActiveRuns.Inc()
		defer p.metrics.ActiveRuns.Dec()
		defer func() { p.metrics.PipelineDuration.Observe(time.Since(start).Seconds()) }()
	}

	candidates := FilterStablecoinPairs(assets, p.stablecoins)
	if len(candidates) == 0 {
		p.countRun("no_assets")
		return nil, ErrNoAssets
	}
	logger.Info().
		Int("candidates", len(candidates)).
		Int("filtered", len(assets)-len(candidates)).
		Msg("starting screening run")

	outcomes := p.generateSignals(ctx, candidates)
	if err := ctx.Err(); err != nil {
		p.countRun("canceled")
		return nil, err
	}

	signalsByAsset := make(map[string][]signal.Signal, len(outcomes))
	candlesByAsset := make(map[string]market.Series, len(outcomes))
	universe := make([]string, 0, len(outcomes))
	var records []SignalRecord
	forecastTS := time.Now().Unix()
	for _, out := range outcomes {
		candlesByAsset[out.asset.Symbol] = out.series
		universe = append(universe, out.asset.Symbol)
		if len(out.signals) == 0 {
			continue
		}
		signalsByAsset[out.asset.Symbol] = out.signals
		dataTS := int64(0)
		if n := len(out.series); n > 0 {
			dataTS = out.series[n-1].Timestamp
		}
		for _, sig := range out.signals {
			records = append(records, SignalRecord{
				Signal:            sig,
				BatchID:           batchID,
				Timeframe:         p.cfg.Timeframe,
				ForecastTimestamp: forecastTS,
				DataTimestamp:     dataTS,
			})
		}
	}

	if len(signalsByAsset) == 0 {
		p.countRun("no_signals")
		return nil, ErrNoSignals
	}

	if p.signalStore != nil && len(records) > 0 {
		if err := p.signalStore.SaveSignals(ctx, records); err != nil {
			logger.Error().Err(err).Msg("storing signals failed, continuing")
		} else {
			logger.Info().Int("records", len(records)).Msg("stored signal batch")
		}
	}

	ranked := ranking.RankAssets(signalsByAsset, universe, p.ranking)

	res := &Result{
		BatchID:      batchID,
		RankedAssets: ranked,
		Signals:      signalsByAsset,
		TotalAssets:  len(universe),
		Duration:     time.Since(start),
	}

	inputs, err := portfolio.CalculateInputs(candlesByAsset, p.cfg.PeriodsPerYear)
	if err != nil {
		p.countRun("no_portfolio")
		logger.Error().Err(err).Msg("portfolio inputs unavailable, returning ranking only")
		res.Duration = time.Since(start)
		return res, fmt.Errorf("portfolio inputs: %w", err)
	}

	primary, err := p.optimize(inputs, p.cfg.Objective, p.cfg.TargetReturn)
	if err != nil {
		p.countRun("no_portfolio")
		return res, fmt.Errorf("optimize %s: %w", p.cfg.Objective, err)
	}
	res.Portfolio = primary
	for asset := range primary.Weights {
		res.SelectedAssets = append(res.SelectedAssets, asset)
	}

	if p.cfg.AlternativeObjectives {
		res.Alternatives = p.alternativePortfolios(inputs)
	}

	if p.portStore != nil {
		if err := p.portStore.SavePortfolio(ctx, batchID, primary); err != nil {
			logger.Error().Err(err).Msg("storing portfolio failed, continuing")
		}
	}

	p.countRun("success")
	res.Duration = time.Since(start)
	logger.Info().
		Int("ranked", len(ranked)).
		Int("allocated", primary.AssetsWithAllocation).
		Dur("duration", res.Duration).
		Msg("screening run complete")
	return res, nil
}

// generateSignals fans the candidate assets out over a worker pool; each
// worker fetches history and runs both generators.
func (p *Pipeline) generateSignals(ctx context.Context, assets []Asset) []assetOutcome {
	jobs := make(chan Asset)
	results := make(chan assetOutcome)

	var wg sync.WaitGroup
	workers := p.cfg.Workers
	if workers > len(assets) {
		workers = len(assets)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for asset := range jobs {
				if out, ok := p.screenAsset(ctx, asset); ok {
					results <- out
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, a := range assets {
			select {
			case jobs <- a:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var outcomes []assetOutcome
	for out := range results {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (p *Pipeline) screenAsset(ctx context.Context, asset Asset) (assetOutcome, bool) {
	series, err := p.source.Candles(ctx, asset, p.cfg.Timeframe)
	if err != nil {
		if p.metrics != nil {
			p.metrics.CandleFetchErrors.Inc()
		}
		log.Warn().Str("asset", asset.Symbol).Err(err).Msg("candle fetch failed, skipping asset")
		return assetOutcome{}, false
	}
	if len(series) < ta.MinCandles {
		p.countSkip("insufficient_history")
		log.Warn().
			Str("asset", asset.Symbol).
			Int("candles", len(series)).
			Msg("insufficient history, skipping asset")
		return assetOutcome{}, false
	}

	series.SortByTime()
	currentPrice := series.LastClose()

	taSignals := ta.Generate(asset.Symbol, asset.ChainID, asset.BaseTokenAddress, series, currentPrice)
	quantSignals := quant.Generate(asset.Symbol, asset.ChainID, asset.BaseTokenAddress, series, currentPrice, p.cfg.PeriodsPerYear)

	if p.metrics != nil {
		p.metrics.AssetsProcessed.Inc()
		p.metrics.SignalsGenerated.WithLabelValues("ta").Add(float64(len(taSignals)))
		p.metrics.SignalsGenerated.WithLabelValues("quant").Add(float64(len(quantSignals)))
	}
	log.Info().
		Str("asset", asset.Symbol).
		Int("ta", len(taSignals)).
		Int("quant", len(quantSignals)).
		Msg("generated signals")

	return assetOutcome{
		asset:   asset,
		series:  series,
		signals: append(taSignals, quantSignals...),
	}, true
}

func (p *Pipeline) optimize(inputs *portfolio.Inputs, objective string, target *float64) (*portfolio.Result, error) {
	res, err := portfolio.Optimize(inputs, portfolio.Options{
		Objective:    objective,
		RiskFreeRate: p.cfg.RiskFreeRate,
		TargetReturn: target,
	})
	if p.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		p.metrics.OptimizationRuns.WithLabelValues(objective, outcome).Inc()
	}
	return res, err
}

// alternativePortfolios optimizes the remaining objectives best-effort.
func (p *Pipeline) alternativePortfolios(inputs *portfolio.Inputs) map[string]*portfolio.Result {
	alts := make(map[string]*portfolio.Result)
	for _, objective := range []string{
		portfolio.ObjectiveMaximizeSharpe,
		portfolio.ObjectiveMinimizeVolatility,
		portfolio.ObjectiveMaximizeReturn,
	} {
		if objective == p.cfg.Objective {
			continue
		}
		res, err := p.optimize(inputs, objective, nil)
		if err != nil {
			log.Warn().Str("objective", objective).Err(err).Msg("alternative optimization failed")
			continue
		}
		alts[objective] = res
	}
	return alts
}

func (p *Pipeline) countRun(outcome string) {
	if p.metrics != nil {
		p.metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	}
}

func (p *Pipeline) countSkip(reason string) {
	if p.metrics != nil {
		p.metrics.AssetsSkipped.WithLabelValues(reason).Inc()
	}
}
