package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/config"
	"github.com/elbarroca/eth-global-prague/internal/infrastructure/persistence"
	"github.com/elbarroca/eth-global-prague/internal/infrastructure/source"
	httpserver "github.com/elbarroca/eth-global-prague/internal/interfaces/http"
	"github.com/elbarroca/eth-global-prague/internal/telemetry"
)

const (
	appName = "screener"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Crypto signal screener and portfolio optimizer",
		Version: version,
		Long: `Screener extracts technical and statistical signals from candle
histories, ranks assets by signal strength, and optimizes a long-only
portfolio allocation over the survivors.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the screening pipeline once",
		Long:  "Generate signals for every configured asset, rank them, and optimize the portfolio",
		RunE:  runScreen,
	}
	runCmd.Flags().String("config", "", "Path to YAML config file")
	runCmd.Flags().String("objective", "", "Override optimization objective (maximize_sharpe|minimize_volatility|maximize_return)")
	runCmd.Flags().Bool("alternatives", false, "Also optimize the other objectives for comparison")
	runCmd.Flags().Bool("json", false, "Print the full result as JSON to stdout")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runScreen(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	objective, _ := cmd.Flags().GetString("objective")
	alternatives, _ := cmd.Flags().GetBool("alternatives")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if objective != "" {
		cfg.Pipeline.Objective = objective
	}
	if alternatives {
		cfg.Pipeline.AlternativeObjectives = true
	}
	if len(cfg.Assets) == 0 {
		return fmt.Errorf("no assets configured, nothing to screen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	if cfg.HTTP.Addr != "" {
		server := httpserver.NewServer(cfg.HTTP.Addr, registry)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("operational server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	var candleSource pipeline.CandleSource = source.NewFileSource(cfg.Data.Dir)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		candleSource = source.NewCachedSource(candleSource, rdb, cfg.Redis.TTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("candle cache enabled")
	}

	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if len(cfg.Ranking.QuantWeights) > 0 || len(cfg.Ranking.TAWeights) > 0 {
		opts = append(opts, pipeline.WithRankingConfig(cfg.Ranking))
	}

	if cfg.Postgres.DSN != "" {
		db, err := persistence.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Postgres.Migrate {
			if err := persistence.Migrate(ctx, db); err != nil {
				return err
			}
		}
		opts = append(opts,
			pipeline.WithSignalStore(persistence.NewSignalStore(db, cfg.Postgres.Timeout)),
			pipeline.WithPortfolioStore(persistence.NewPortfolioStore(db, cfg.Postgres.Timeout)),
		)
		log.Info().Msg("persistence enabled")
	}

	p := pipeline.New(candleSource, cfg.Pipeline, opts...)
	result, err := p.Run(ctx, cfg.Assets)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printSummary(result)
	return nil
}

func printSummary(res *pipeline.Result) {
	fmt.Printf("Batch %s: ranked %d assets in %s\n", res.BatchID, len(res.RankedAssets), res.Duration.Round(time.Millisecond))
	top := res.RankedAssets
	if len(top) > 10 {
		top = top[:10]
	}
	for i, ra := range top {
		fmt.Printf("%2d. %-16s score=%8.4f signals=%d (bull=%d bear=%d)\n",
			i+1, ra.Asset, ra.Score, ra.NumSignals, ra.NumBullish, ra.NumBearish)
	}
	if res.Portfolio == nil {
		return
	}
	fmt.Printf("\nPortfolio (%s): return=%.4f vol=%.4f sharpe=%.4f sortino=%.4f maxDD=%.4f\n",
		res.Portfolio.Objective,
		res.Portfolio.ExpectedAnnualReturn, res.Portfolio.AnnualVolatility,
		res.Portfolio.SharpeRatio, res.Portfolio.SortinoRatio, res.Portfolio.MaxDrawdown)
	assets := make([]string, 0, len(res.Portfolio.Weights))
	for asset := range res.Portfolio.Weights {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Printf("  %-16s %6.2f%%\n", asset, res.Portfolio.Weights[asset]*100)
	}
}
