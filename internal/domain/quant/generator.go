// Package quant extracts statistical and econometric signals from a candle
// series: volatility regimes, GARCH forecasts, tail risk, momentum, market
// regime, liquidity and Fourier statistical-arbitrage bands.
package quant

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/domain/market"
	"github.com/elbarroca/eth-global-prague/internal/domain/returns"
	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
	"github.com/elbarroca/eth-global-prague/internal/domain/ta"
)

// MinCandles is the floor below which no quant signals are generated; the
// derived log-return series must hold at least MinCandles-1 observations.
const MinCandles = 50

// Signal types emitted by this generator.
const (
	TypeVolRegimeHigh          = "QUANT_VOL_REGIME_HIGH"
	TypeVolRegimeLow           = "QUANT_VOL_REGIME_LOW"
	TypeGarchHighVolForecast   = "QUANT_GARCH_HIGH_VOL_FORECAST"
	TypeVolRiskPremiumHigh     = "QUANT_VOL_RISK_PREMIUM_HIGH"
	TypeVolRiskPremiumLow      = "QUANT_VOL_RISK_PREMIUM_LOW"
	TypeCVaRHighRisk           = "QUANT_CVAR95_HIGH_RISK"
	TypeMeanRevertHigh         = "QUANT_MEANREVERT_OVEREXTENDED_HIGH"
	TypeMeanRevertLow          = "QUANT_MEANREVERT_OVEREXTENDED_LOW"
	TypeMomentumHighSharpe     = "QUANT_MOMENTUM_HIGH_SHARPE"
	TypeMomentumNegativeSharpe = "QUANT_MOMENTUM_NEGATIVE_SHARPE"
	TypeMomentumBearishDiverge = "QUANT_MOMENTUM_BEARISH_DIVERGENCE"
	TypeRegimeStrongUptrend    = "QUANT_REGIME_STRONG_UPTREND"
	TypeRegimeStrongDowntrend  = "QUANT_REGIME_STRONG_DOWNTREND"
	TypeRegimeChangeDetected   = "QUANT_REGIME_CHANGE_DETECTED"
	TypeLiquidityBearishVPT    = "QUANT_LIQUIDITY_BEARISH_VPT_DIVERGENCE"
	TypeLiquidityBullishVPT    = "QUANT_LIQUIDITY_BULLISH_VPT_DIVERGENCE"
	TypeLiquidityVolumeSpike   = "QUANT_LIQUIDITY_VOLUME_SPIKE"
	TypeLiquidityVolumeDrought = "QUANT_LIQUIDITY_VOLUME_DROUGHT"
	TypeNegativeSkewRisk       = "QUANT_DISTRIBUTION_NEGATIVE_SKEW_RISK"
	TypePositiveSkewOpportuni  = "QUANT_DISTRIBUTION_POSITIVE_SKEW_OPPORTUNITY"
	TypeHighKurtosisRisk       = "QUANT_DISTRIBUTION_HIGH_KURTOSIS_RISK"
	TypeFourierMeanRevBuy      = "QUANT_FOURIER_MEAN_REVERSION_BUY"
	TypeFourierMeanRevSell     = "QUANT_FOURIER_MEAN_REVERSION_SELL"
	TypeFourierExtremeDevHigh  = "QUANT_FOURIER_EXTREME_DEVIATION_HIGH"
	TypeFourierExtremeDevLow   = "QUANT_FOURIER_EXTREME_DEVIATION_LOW"
	TypeFourierHighStructVol   = "QUANT_FOURIER_HIGH_STRUCTURAL_VOL"
	TypeFourierLowStructVol    = "QUANT_FOURIER_LOW_STRUCTURAL_VOL"
)

// Generate extracts quant signals from a candle series. periodsPerYear is
// the annualization factor matching the candle granularity (365 for daily).
// currentPrice overrides the latest close when finite and positive. Each
// analytics family is independent: one family lacking data or failing its
// model fit does not stop the others.
func Generate(asset string, chainID int64, tokenAddress string, series market.Series, currentPrice float64, periodsPerYear int) []signal.Signal {
	if len(series) < MinCandles {
		log.Warn().
			Str("asset", asset).
			Int("candles", len(series)).
			Int("required", MinCandles).
			Msg("not enough candles for quant signals")
		return nil
	}

	s := series.Clone()
	s.SortByTime()

	g := &quantGen{
		factory:        signal.NewFactory(asset, chainID, tokenAddress),
		asset:          asset,
		series:         s,
		closes:         s.Closes(),
		highs:          s.Highs(),
		volumes:        s.Volumes(),
		periodsPerYear: periodsPerYear,
	}

	g.price = s.LastClose()
	if !math.IsNaN(currentPrice) && !math.IsInf(currentPrice, 0) && currentPrice > 0 {
		g.price = currentPrice
	}
	if math.IsNaN(g.price) || math.IsInf(g.price, 0) || g.price <= 0 {
		log.Error().Str("asset", asset).Float64("price", g.price).Msg("invalid latest price for quant signals")
		return nil
	}

	g.logReturns = returns.Log(g.closes)
	g.simpleReturns = returns.Simple(g.closes)
	g.cleanLogReturns = returns.Finite(g.logReturns)
	if len(g.cleanLogReturns) < MinCandles-1 {
		log.Warn().
			Str("asset", asset).
			Int("returns", len(g.cleanLogReturns)).
			Msg("insufficient usable returns for quant signals")
		return nil
	}

	g.realizedVol = returns.AnnualizedRealizedVol(g.logReturns, realizedVolWindow, periodsPerYear)
	g.latestRealizedVol = g.realizedVol[len(g.realizedVol)-1]

	g.volatilityRegime()
	g.garch()
	g.tailRisk()
	g.meanReversion()
	g.momentum()
	g.marketRegime()
	g.liquidity()
	g.distributionShape()
	g.fourier()

	log.Info().Str("asset", asset).Int("signals", len(g.sigs)).Msg("generated quant signals")
	return g.sigs
}

const realizedVolWindow = 20

type quantGen struct {
	factory           signal.Factory
	asset             string
	series            market.Series
	closes            []float64
	highs             []float64
	volumes           []float64
	price             float64
	periodsPerYear    int
	logReturns        []float64
	simpleReturns     []float64
	cleanLogReturns   []float64
	realizedVol       []float64
	latestRealizedVol float64
	sigs              []signal.Signal
}

func (g *quantGen) emit(signalType string, confidence float64, details map[string]float64) {
	g.sigs = append(g.sigs, g.factory.New(signalType, confidence, details))
}

// volatilityRegime classifies the latest realized volatility against its
// own 10th/90th percentiles over the series history.
func (g *quantGen) volatilityRegime() {
	if math.IsNaN(g.latestRealizedVol) || stats.FiniteCount(g.realizedVol) <= realizedVolWindow {
		return
	}
	q90 := stats.Quantile(g.realizedVol, 0.90)
	q10 := stats.Quantile(g.realizedVol, 0.10)
	switch {
	case !math.IsNaN(q90) && g.latestRealizedVol > q90:
		g.emit(TypeVolRegimeHigh, 0.6, map[string]float64{
			"realized_vol_annualized": g.latestRealizedVol,
			"percentile_90th_vol":     q90,
			"price":                   g.price,
		})
	case !math.IsNaN(q10) && g.latestRealizedVol < q10:
		g.emit(TypeVolRegimeLow, 0.6, map[string]float64{
			"realized_vol_annualized": g.latestRealizedVol,
			"percentile_10th_vol":     q10,
			"price":                   g.price,
		})
	}
}

// garch runs the conditional-volatility model chain and derives the
// absolute-level and volatility-risk-premium signals from the accepted
// forecast.
func (g *quantGen) garch() {
	res, err := FitGarchForecast(g.cleanLogReturns, g.periodsPerYear)
	if err != nil {
		log.Debug().Str("asset", g.asset).Err(err).Msg("volatility forecast unavailable")
		return
	}
	condVol := res.ForecastVolAnnualized

	const highVolThreshold = 0.80
	if condVol > highVolThreshold {
		g.emit(TypeGarchHighVolForecast, 0.7, map[string]float64{
			"forecasted_cond_vol_annualized": condVol,
			"threshold":                      highVolThreshold,
			"price":                          g.price,
		})
	}

	if !math.IsNaN(g.latestRealizedVol) && g.latestRealizedVol > 1e-6 {
		premium := condVol / g.latestRealizedVol
		details := map[string]float64{
			"garch_vol_ann":    condVol,
			"realized_vol_ann": g.latestRealizedVol,
			"ratio":            premium,
			"price":            g.price,
		}
		if premium > 1.5 {
			g.emit(TypeVolRiskPremiumHigh, 0.65, details)
		} else if premium < 0.67 {
			g.emit(TypeVolRiskPremiumLow, 0.60, details)
		}
	}
}

// tailRisk computes historical VaR/CVaR at 95% on simple returns and flags
// assets whose expected shortfall exceeds a 5%-per-period loss.
func (g *quantGen) tailRisk() {
	rets := returns.Finite(g.simpleReturns)
	if len(rets) < 30 {
		log.Debug().Str("asset", g.asset).Int("returns", len(rets)).Msg("insufficient data for VaR/CVaR")
		return
	}
	varLoss, cvarLoss, ok := HistoricalVaRCVaR(rets, 0.95)
	if !ok {
		return
	}
	const cvarThreshold = 0.05
	if cvarLoss > cvarThreshold {
		g.emit(TypeCVaRHighRisk, 0.75, map[string]float64{
			"cvar_95_daily_loss_pct": cvarLoss * 100,
			"var_95_daily_loss_pct":  varLoss * 100,
			"threshold_cvar_pct":     cvarThreshold * 100,
			"price":                  g.price,
		})
	}
}

// HistoricalVaRCVaR returns empirical VaR and CVaR as positive loss
// magnitudes at the given confidence level. Needs roughly 25 observations
// at 95%; ok is false when the sample is too small or degenerate.
func HistoricalVaRCVaR(rets []float64, confidence float64) (varLoss, cvarLoss float64, ok bool) {
	if confidence <= 0 || confidence >= 1 {
		return 0, 0, false
	}
	minPoints := int(1/(1-confidence)) + 5
	clean := returns.Finite(rets)
	if len(clean) < minPoints {
		return 0, 0, false
	}
	q := stats.Quantile(clean, 1-confidence)
	if math.IsNaN(q) {
		return 0, 0, false
	}
	sum, n := 0.0, 0
	for _, r := range clean {
		if r <= q {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return -q, -(sum / float64(n)), true
}

// meanReversion flags prices stretched beyond two rolling standard
// deviations from their 20-period mean.
func (g *quantGen) meanReversion() {
	const window = 20
	if len(g.closes) < window {
		return
	}
	minPeriods := window / 2
	sma := stats.RollingMean(g.closes, window, minPeriods)
	sd := stats.RollingStd(g.closes, window, minPeriods)
	n := len(g.closes)
	latestSMA, latestStd := sma[n-1], sd[n-1]
	if anyNaN(latestSMA, latestStd) || latestStd <= 1e-6 {
		return
	}
	const zThreshold = 2.0
	z := (g.price - latestSMA) / latestStd
	details := map[string]float64{
		"price":         g.price,
		"sma_price":     latestSMA,
		"std_dev_price": latestStd,
		"z_score":       z,
	}
	if z > zThreshold {
		details["threshold_z"] = zThreshold
		g.emit(TypeMeanRevertHigh, 0.6, details)
	} else if z < -zThreshold {
		details["threshold_z"] = -zThreshold
		g.emit(TypeMeanRevertLow, 0.6, details)
	}
}

// momentum computes a rolling annualized Sharpe over log returns and a
// bearish price/RSI divergence over a 5-vs-15 bar lookback.
func (g *quantGen) momentum() {
	if len(g.cleanLogReturns) < 50 {
		return
	}
	const window = 20
	mean := stats.RollingMean(g.cleanLogReturns, window, window)
	sd := stats.RollingStd(g.cleanLogReturns, window, window)
	last := len(g.cleanLogReturns) - 1
	if !anyNaN(mean[last], sd[last]) && sd[last] > 0 {
		sharpe := mean[last] / sd[last] * math.Sqrt(float64(g.periodsPerYear))
		if !math.IsInf(sharpe, 0) {
			if sharpe > 1.5 {
				g.emit(TypeMomentumHighSharpe, 0.7, map[string]float64{
					"sharpe_ratio": sharpe, "threshold": 1.5, "price": g.price,
				})
			} else if sharpe < -1.0 {
				g.emit(TypeMomentumNegativeSharpe, 0.7, map[string]float64{
					"sharpe_ratio": sharpe, "threshold": -1.0, "price": g.price,
				})
			}
		}
	}

	if len(g.series) >= 60 {
		g.bearishDivergence()
	}
}

// bearishDivergence: price prints a higher local high while the RSI's
// local high falls.
func (g *quantGen) bearishDivergence() {
	rsi := ta.RSI(g.closes, 14)
	n := len(g.closes)
	recentPriceHigh := maxOf(g.highs[n-5:])
	recentRSIHigh := maxOf(rsi[n-5:])
	prevPriceHigh := maxOf(g.highs[n-20 : n-5])
	prevRSIHigh := maxOf(rsi[n-20 : n-5])

	if anyNaN(recentRSIHigh, prevRSIHigh) {
		return
	}
	if recentPriceHigh > prevPriceHigh && recentRSIHigh < prevRSIHigh {
		g.emit(TypeMomentumBearishDiverge, 0.65, map[string]float64{
			"recent_price_high": recentPriceHigh,
			"recent_rsi":        recentRSIHigh,
			"prev_price_high":   prevPriceHigh,
			"prev_rsi":          prevRSIHigh,
			"price":             g.price,
		})
	}
}

// marketRegime detects trend persistence over 30 bars and short/long
// variance-ratio regime changes.
func (g *quantGen) marketRegime() {
	if len(g.cleanLogReturns) < 60 {
		return
	}

	const persistenceWindow = 30
	ups := make([]float64, 0, len(g.closes)-1)
	for i := 1; i < len(g.closes); i++ {
		if g.closes[i] > g.closes[i-1] {
			ups = append(ups, 1)
		} else {
			ups = append(ups, 0)
		}
	}
	persistence := stats.RollingMean(ups, persistenceWindow, persistenceWindow)
	latest := persistence[len(persistence)-1]
	if !math.IsNaN(latest) {
		if latest > 0.7 {
			g.emit(TypeRegimeStrongUptrend, 0.6, map[string]float64{
				"trend_persistence": latest, "threshold": 0.7, "price": g.price,
			})
		} else if latest < 0.3 {
			g.emit(TypeRegimeStrongDowntrend, 0.6, map[string]float64{
				"trend_persistence": latest, "threshold": 0.3, "price": g.price,
			})
		}
	}

	shortVar := stats.RollingVar(g.cleanLogReturns, 5, 5)
	longVar := stats.RollingVar(g.cleanLogReturns, 20, 20)
	last := len(g.cleanLogReturns) - 1
	sv, lv := shortVar[last], longVar[last]
	if anyNaN(sv, lv) || lv <= 1e-8 {
		return
	}
	ratio := sv / lv
	if ratio > 3.0 && !math.IsInf(ratio, 0) {
		ppy := float64(g.periodsPerYear)
		g.emit(TypeRegimeChangeDetected, 0.65, map[string]float64{
			"variance_ratio": ratio,
			"threshold":      3.0,
			"short_term_vol": math.Sqrt(sv * ppy),
			"long_term_vol":  math.Sqrt(lv * ppy),
			"price":          g.price,
		})
	}
}

// liquidity analyzes volume-price-trend divergence and volume z-score
// anomalies.
func (g *quantGen) liquidity() {
	n := len(g.series)
	if n < 30 {
		return
	}

	// Volume-price trend: cumulative sum of pct-change x volume.
	vpt := make([]float64, n)
	cum := 0.0
	for i := 1; i < n; i++ {
		if !math.IsNaN(g.simpleReturns[i]) {
			cum += g.simpleReturns[i] * g.volumes[i]
		}
		vpt[i] = cum
	}
	if n >= 10 {
		vptChange := vpt[n-1] - vpt[n-10]
		priceChange5 := g.closes[n-1] - g.closes[n-5]
		details := map[string]float64{
			"price_change_5d": priceChange5,
			"vpt_change":      vptChange,
			"price":           g.price,
		}
		if priceChange5 > 0 && vptChange < 0 {
			g.emit(TypeLiquidityBearishVPT, 0.6, details)
		} else if priceChange5 < 0 && vptChange > 0 {
			g.emit(TypeLiquidityBullishVPT, 0.6, details)
		}
	}

	const window = 20
	volSMA := stats.RollingMean(g.volumes, window, window)
	volStd := stats.RollingStd(g.volumes, window, window)
	latestVolume := g.volumes[n-1]
	if anyNaN(volSMA[n-1], volStd[n-1]) || volStd[n-1] <= 1e-6 {
		return
	}
	z := (latestVolume - volSMA[n-1]) / volStd[n-1]
	if math.Abs(z) > 2.5 {
		sigType := TypeLiquidityVolumeSpike
		if z < 0 {
			sigType = TypeLiquidityVolumeDrought
		}
		g.emit(sigType, 0.55, map[string]float64{
			"volume_zscore": z,
			"latest_volume": latestVolume,
			"avg_volume":    volSMA[n-1],
			"price":         g.price,
		})
	}
}

// distributionShape flags skewness/kurtosis extremes of the rolling
// 30-period return distribution.
func (g *quantGen) distributionShape() {
	if len(g.cleanLogReturns) < 50 {
		return
	}
	const window = 30
	skew := stats.RollingSkew(g.cleanLogReturns, window, window)
	kurt := stats.RollingKurt(g.cleanLogReturns, window, window)
	last := len(g.cleanLogReturns) - 1

	if s := skew[last]; !math.IsNaN(s) {
		if s < -1.0 {
			g.emit(TypeNegativeSkewRisk, 0.6, map[string]float64{
				"skewness": s, "threshold": -1.0, "price": g.price,
			})
		} else if s > 1.0 {
			g.emit(TypePositiveSkewOpportuni, 0.55, map[string]float64{
				"skewness": s, "threshold": 1.0, "price": g.price,
			})
		}
	}
	if k := kurt[last]; !math.IsNaN(k) && k > 5.0 {
		g.emit(TypeHighKurtosisRisk, 0.65, map[string]float64{
			"kurtosis": k, "threshold": 5.0, "price": g.price,
		})
	}
}

// fourier runs the statistical-arbitrage band analysis on the close
// series: band-crossing mean-reversion entries, extreme deviation and
// structural volatility comparison against realized volatility.
func (g *quantGen) fourier() {
	bands, err := analyzeFourierBands(g.closes, DefaultRemoveFraction, 20)
	if err != nil {
		log.Debug().Str("asset", g.asset).Err(err).Msg("fourier analysis unavailable")
		return
	}

	strength := bands.Strength
	z := bands.ZScore
	if math.IsNaN(z) || math.IsInf(z, 0) {
		z = 0
	}

	if strength > 0.3 {
		confidence := math.Min(0.5+strength*0.3, 0.8)
		details := map[string]float64{
			"signal_strength":   strength,
			"detrended_z_score": z,
			"detrended_value":   bands.Detrended,
			"price":             g.price,
		}
		if bands.Signal == "Buy" {
			details["lower_band"] = bands.LowerBand
			g.emit(TypeFourierMeanRevBuy, confidence, details)
		} else if bands.Signal == "Sell" {
			details["upper_band"] = bands.UpperBand
			g.emit(TypeFourierMeanRevSell, confidence, details)
		}
	}

	if math.Abs(z) > 2.0 {
		sigType := TypeFourierExtremeDevHigh
		if z < 0 {
			sigType = TypeFourierExtremeDevLow
		}
		g.emit(sigType, 0.65, map[string]float64{
			"detrended_z_score": z,
			"threshold":         2.0,
			"detrended_value":   bands.Detrended,
			"global_std_dev":    bands.GlobalStdDev,
			"price":             g.price,
		})
	}

	if bands.GlobalStdDev > 0 && !math.IsNaN(g.latestRealizedVol) && g.latestRealizedVol > 1e-6 {
		fourierVolAnn := bands.GlobalStdDev * math.Sqrt(float64(g.periodsPerYear))
		ratio := fourierVolAnn / g.latestRealizedVol
		if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			return
		}
		details := map[string]float64{
			"fourier_vol_annualized":  fourierVolAnn,
			"realized_vol_annualized": g.latestRealizedVol,
			"vol_ratio":               ratio,
			"price":                   g.price,
		}
		if ratio > 1.5 {
			details["threshold"] = 1.5
			g.emit(TypeFourierHighStructVol, 0.6, details)
		} else if ratio < 0.67 {
			details["threshold"] = 0.67
			g.emit(TypeFourierLowStructVol, 0.55, details)
		}
	}
}

func maxOf(xs []float64) float64 {
	m := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(m) || x > m {
			m = x
		}
	}
	return m
}
