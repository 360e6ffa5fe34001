// Package persistence stores generated signals and optimized portfolios
// in PostgreSQL.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/portfolio"
)

// Schema creates the tables the stores write to.
const Schema = `
CREATE TABLE IF NOT EXISTS forecast_signals (
	id             BIGSERIAL PRIMARY KEY,
	batch_id       UUID NOT NULL,
	asset_symbol   TEXT NOT NULL,
	chain_id       BIGINT NOT NULL,
	base_token     TEXT NOT NULL,
	signal_type    TEXT NOT NULL,
	timeframe      TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	details        JSONB NOT NULL DEFAULT '{}',
	forecast_ts    BIGINT NOT NULL,
	data_ts        BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_forecast_signals_batch ON forecast_signals (batch_id);
CREATE INDEX IF NOT EXISTS idx_forecast_signals_asset ON forecast_signals (asset_symbol, forecast_ts DESC);

CREATE TABLE IF NOT EXISTS optimized_portfolios (
	id               BIGSERIAL PRIMARY KEY,
	batch_id         UUID NOT NULL,
	objective        TEXT NOT NULL,
	weights          JSONB NOT NULL,
	expected_return  DOUBLE PRECISION NOT NULL,
	volatility       DOUBLE PRECISION NOT NULL,
	sharpe_ratio     DOUBLE PRECISION NOT NULL,
	sortino_ratio    DOUBLE PRECISION NOT NULL,
	calmar_ratio     DOUBLE PRECISION NOT NULL,
	max_drawdown     DOUBLE PRECISION NOT NULL,
	cvar_95          DOUBLE PRECISION,
	total_assets     INT NOT NULL,
	allocated_assets INT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_portfolios_batch ON optimized_portfolios (batch_id);
`

// Connect opens a PostgreSQL pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SignalStore persists signal batches.
type SignalStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalStore builds a store with the given per-call timeout.
func NewSignalStore(db *sqlx.DB, timeout time.Duration) *SignalStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SignalStore{db: db, timeout: timeout}
}

// SaveSignals implements pipeline.SignalStore. The batch is written in a
// single transaction so a partial failure leaves nothing behind.
func (s *SignalStore) SaveSignals(ctx context.Context, records []pipeline.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signal batch: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO forecast_signals
		(batch_id, asset_symbol, chain_id, base_token, signal_type, timeframe,
		 confidence, details, forecast_ts, data_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, rec := range records {
		details, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("marshal details for %s: %w", rec.SignalType, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.BatchID, rec.AssetSymbol, rec.ChainID, rec.BaseTokenAddress,
			rec.SignalType, rec.Timeframe, rec.Confidence, details,
			rec.ForecastTimestamp, rec.DataTimestamp); err != nil {
			return fmt.Errorf("insert signal %s/%s: %w", rec.AssetSymbol, rec.SignalType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit signal batch: %w", err)
	}
	return nil
}

// PortfolioStore persists optimization results.
type PortfolioStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPortfolioStore builds a store with the given per-call timeout.
func NewPortfolioStore(db *sqlx.DB, timeout time.Duration) *PortfolioStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PortfolioStore{db: db, timeout: timeout}
}

// SavePortfolio implements pipeline.PortfolioStore.
func (s *PortfolioStore) SavePortfolio(ctx context.Context, batchID string, result *portfolio.Result) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	weights, err := json.Marshal(result.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	const query = `
		INSERT INTO optimized_portfolios
		(batch_id, objective, weights, expected_return, volatility, sharpe_ratio,
		 sortino_ratio, calmar_ratio, max_drawdown, cvar_95, total_assets, allocated_assets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := s.db.ExecContext(ctx, query,
		batchID, result.Objective, weights,
		result.ExpectedAnnualReturn, result.AnnualVolatility, result.SharpeRatio,
		result.SortinoRatio, result.CalmarRatio, result.MaxDrawdown,
		result.CVaR95, result.TotalAssets, result.AssetsWithAllocation); err != nil {
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}
