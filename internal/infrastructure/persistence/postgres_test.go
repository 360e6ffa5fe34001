package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elbarroca/eth-global-prague/internal/application/pipeline"
	"github.com/elbarroca/eth-global-prague/internal/domain/portfolio"
	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func sampleRecords() []pipeline.SignalRecord {
	return []pipeline.SignalRecord{
		{
			Signal: signal.Signal{
				AssetSymbol:      "WETH-USDC",
				SignalType:       "TA_RSI_OVERSOLD",
				Confidence:       0.6,
				Details:          map[string]float64{"rsi": 24.1},
				ChainID:          1,
				BaseTokenAddress: "0xweth",
			},
			BatchID:           "batch-1",
			Timeframe:         "daily",
			ForecastTimestamp: 1700000000,
			DataTimestamp:     1699913600,
		},
		{
			Signal: signal.Signal{
				AssetSymbol:      "WBTC-USDC",
				SignalType:       "QUANT_VOL_REGIME_LOW",
				Confidence:       0.6,
				ChainID:          1,
				BaseTokenAddress: "0xwbtc",
			},
			BatchID:           "batch-1",
			Timeframe:         "daily",
			ForecastTimestamp: 1700000000,
			DataTimestamp:     1699913600,
		},
	}
}

func TestSaveSignalsCommitsBatch(t *testing.T) {
	db, mock := newMockDB(t)
	records := sampleRecords()

	mock.ExpectBegin()
	for _, rec := range records {
		mock.ExpectExec("INSERT INTO forecast_signals").
			WithArgs(rec.BatchID, rec.AssetSymbol, rec.ChainID, rec.BaseTokenAddress,
				rec.SignalType, rec.Timeframe, rec.Confidence, sqlmock.AnyArg(),
				rec.ForecastTimestamp, rec.DataTimestamp).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	store := NewSignalStore(db, 0)
	require.NoError(t, store.SaveSignals(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignalsRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	records := sampleRecords()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO forecast_signals").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	store := NewSignalStore(db, 0)
	err := store.SaveSignals(context.Background(), records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignalsEmptyBatchIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewSignalStore(db, 0)
	require.NoError(t, store.SaveSignals(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePortfolio(t *testing.T) {
	db, mock := newMockDB(t)

	cvar := -0.031
	result := &portfolio.Result{
		Objective:            "maximize_sharpe",
		Weights:              map[string]float64{"WETH-USDC": 0.6, "WBTC-USDC": 0.4},
		ExpectedAnnualReturn: 0.25,
		AnnualVolatility:     0.40,
		SharpeRatio:          0.575,
		SortinoRatio:         0.8,
		CalmarRatio:          1.1,
		MaxDrawdown:          0.22,
		CVaR95:               &cvar,
		TotalAssets:          3,
		AssetsWithAllocation: 2,
	}

	mock.ExpectExec("INSERT INTO optimized_portfolios").
		WithArgs("batch-1", result.Objective, sqlmock.AnyArg(),
			result.ExpectedAnnualReturn, result.AnnualVolatility, result.SharpeRatio,
			result.SortinoRatio, result.CalmarRatio, result.MaxDrawdown,
			result.CVaR95, result.TotalAssets, result.AssetsWithAllocation).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPortfolioStore(db, 0)
	require.NoError(t, store.SavePortfolio(context.Background(), "batch-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePortfolioInsertError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO optimized_portfolios").
		WillReturnError(errors.New("connection reset"))

	store := NewPortfolioStore(db, 0)
	err := store.SavePortfolio(context.Background(), "batch-1", &portfolio.Result{Objective: "maximize_sharpe"})
	assert.Error(t, err)
}
