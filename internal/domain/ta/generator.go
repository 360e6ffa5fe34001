// Package ta extracts technical-indicator signals from a candle series.
package ta

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/domain/market"
	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
)

// MinCandles is the floor below which no TA signals are generated.
const MinCandles = 50

// Signal types emitted by this generator.
const (
	TypeMACrossBullish       = "TA_MA_CROSS_BULLISH"
	TypeMACrossBearish       = "TA_MA_CROSS_BEARISH"
	TypeRSIOverbought        = "TA_RSI_OVERBOUGHT"
	TypeRSIOversold          = "TA_RSI_OVERSOLD"
	TypeRSINeutral           = "TA_RSI_NEUTRAL"
	TypeMACDCrossBullish     = "TA_MACD_CROSS_BULLISH"
	TypeMACDCrossBearish     = "TA_MACD_CROSS_BEARISH"
	TypeMACDZeroCrossBullish = "TA_MACD_ZERO_CROSS_BULLISH"
	TypeMACDZeroCrossBearish = "TA_MACD_ZERO_CROSS_BEARISH"
	TypeMACDBullishMomentum  = "TA_MACD_BULLISH_MOMENTUM"
	TypeMACDBearishMomentum  = "TA_MACD_BEARISH_MOMENTUM"
	TypeBBBreakUpper         = "TA_BB_BREAK_UPPER"
	TypeBBBreakLower         = "TA_BB_BREAK_LOWER"
	TypeStochBullishCross    = "TA_STOCH_BULLISH_CROSS"
	TypeStochBearishCross    = "TA_STOCH_BEARISH_CROSS"
	TypeVolumeBreakoutBull   = "TA_VOLUME_BREAKOUT_BULLISH"
	TypeVolumeBreakoutBear   = "TA_VOLUME_BREAKOUT_BEARISH"
	TypeVolumeSpike          = "TA_VOLUME_SPIKE"
	TypeVolumeDrought        = "TA_VOLUME_DROUGHT"
	TypeVolumeTrendUp        = "TA_VOLUME_TREND_INCREASING"
	TypeVolumeTrendDown      = "TA_VOLUME_TREND_DECREASING"
	TypePriceStrongMoveUp    = "TA_PRICE_STRONG_MOVE_UP"
	TypePriceStrongMoveDown  = "TA_PRICE_STRONG_MOVE_DOWN"
	TypePriceMomentumUp      = "TA_PRICE_MOMENTUM_CONSISTENT_UP"
	TypePriceMomentumDown    = "TA_PRICE_MOMENTUM_CONSISTENT_DOWN"
	TypePriceNearRecentHigh  = "TA_PRICE_NEAR_RECENT_HIGH"
	TypePriceNearRecentLow   = "TA_PRICE_NEAR_RECENT_LOW"
)

// Generate extracts TA signals from a candle series. currentPrice overrides
// the latest close when finite and positive; pass NaN (or any non-positive
// value) to use the last close. The input series is not mutated. A family
// that lacks enough valid data is skipped; the others still run.
func Generate(asset string, chainID int64, tokenAddress string, series market.Series, currentPrice float64) []signal.Signal {
	if len(series) < MinCandles {
		log.Warn().
			Str("asset", asset).
			Int("candles", len(series)).
			Int("required", MinCandles).
			Msg("not enough candles for TA signals")
		return nil
	}

	s := series.Clone()
	s.SortByTime()
	if !s.HasFinitePrices() {
		log.Error().Str("asset", asset).Msg("candle series has non-finite or non-positive prices")
		return nil
	}
	if fixed := s.FixOHLC(); fixed > 0 {
		log.Warn().Str("asset", asset).Int("rows", fixed).Msg("repaired inconsistent OHLC rows")
	}

	g := &generator{
		factory: signal.NewFactory(asset, chainID, tokenAddress),
		asset:   asset,
		highs:   s.Highs(),
		lows:    s.Lows(),
		closes:  s.Closes(),
		volumes: s.Volumes(),
	}

	g.price = s.LastClose()
	if !math.IsNaN(currentPrice) && !math.IsInf(currentPrice, 0) && currentPrice > 0 {
		g.price = currentPrice
	} else if !math.IsNaN(currentPrice) && currentPrice != 0 {
		log.Warn().Str("asset", asset).Float64("current_price", currentPrice).Msg("invalid current price, using latest close")
	}
	if g.price <= 0 || math.IsNaN(g.price) || math.IsInf(g.price, 0) {
		log.Error().Str("asset", asset).Float64("price", g.price).Msg("invalid latest price for TA signals")
		return nil
	}

	g.maCrossover()
	g.rsi()
	g.macd()
	g.bollinger()
	g.stochastic()
	g.volume()

	// Guarantee a minimum signal density: price-action fallbacks only fire
	// when the indicator families produced fewer than 3 signals.
	if len(g.sigs) < 3 {
		g.priceAction()
	}

	log.Info().Str("asset", asset).Int("signals", len(g.sigs)).Msg("generated TA signals")
	return g.sigs
}

type generator struct {
	factory signal.Factory
	asset   string
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
	price   float64
	sigs    []signal.Signal
}

func (g *generator) emit(signalType string, confidence float64, details map[string]float64) {
	g.sigs = append(g.sigs, g.factory.New(signalType, confidence, details))
}

func (g *generator) maCrossover() {
	sma10 := SMA(g.closes, 10)
	sma20 := SMA(g.closes, 20)
	n := len(g.closes)
	if n < 2 || anyNaN(sma10[n-1], sma20[n-1], sma10[n-2], sma20[n-2]) {
		log.Debug().Str("asset", g.asset).Msg("MA crossover skipped: insufficient valid data")
		return
	}
	details := map[string]float64{"sma_10": sma10[n-1], "sma_20": sma20[n-1], "price": g.price}
	switch {
	case sma10[n-1] > sma20[n-1] && sma10[n-2] <= sma20[n-2]:
		g.emit(TypeMACrossBullish, 0.75, details)
	case sma10[n-1] < sma20[n-1] && sma10[n-2] >= sma20[n-2]:
		g.emit(TypeMACrossBearish, 0.75, details)
	}
}

func (g *generator) rsi() {
	rsi := RSI(g.closes, 14)
	latest := rsi[len(rsi)-1]
	if math.IsNaN(latest) {
		log.Debug().Str("asset", g.asset).Msg("RSI skipped: insufficient valid data")
		return
	}
	switch {
	case latest > 65:
		conf := 0.6
		if latest > 70 {
			conf = 0.7
		}
		g.emit(TypeRSIOverbought, conf, map[string]float64{"rsi": latest, "threshold": 65, "price": g.price})
	case latest < 35:
		conf := 0.6
		if latest < 30 {
			conf = 0.7
		}
		g.emit(TypeRSIOversold, conf, map[string]float64{"rsi": latest, "threshold": 35, "price": g.price})
	case latest >= 45 && latest <= 55:
		g.emit(TypeRSINeutral, 0.5, map[string]float64{"rsi": latest, "price": g.price})
	}
}

func (g *generator) macd() {
	macd, sig, hist := MACD(g.closes, 12, 26, 9)

	// Crossovers compare the two most recent bars where all three lines are
	// valid, which need not be the last two array positions.
	last, prev := -1, -1
	for i := len(macd) - 1; i >= 0; i-- {
		if anyNaN(macd[i], sig[i], hist[i]) {
			continue
		}
		if last == -1 {
			last = i
		} else {
			prev = i
			break
		}
	}
	if last == -1 || prev == -1 {
		log.Debug().Str("asset", g.asset).Msg("MACD skipped: fewer than two valid bars")
		return
	}

	details := map[string]float64{
		"macd":        macd[last],
		"signal_line": sig[last],
		"histogram":   hist[last],
		"price":       g.price,
	}
	switch {
	case macd[last] > sig[last] && macd[prev] <= sig[prev]:
		d := cloneDetails(details)
		d["crossover_strength"] = math.Abs(macd[last] - sig[last])
		g.emit(TypeMACDCrossBullish, 0.8, d)
	case macd[last] < sig[last] && macd[prev] >= sig[prev]:
		d := cloneDetails(details)
		d["crossover_strength"] = math.Abs(macd[last] - sig[last])
		g.emit(TypeMACDCrossBearish, 0.8, d)
	}

	// Zero-line cross against the valid bar before prev.
	zeroPrev := prev - 1
	for zeroPrev >= 0 && math.IsNaN(macd[zeroPrev]) {
		zeroPrev--
	}
	if zeroPrev >= 0 {
		if macd[last] > 0 && macd[zeroPrev] <= 0 {
			g.emit(TypeMACDZeroCrossBullish, 0.7, cloneDetails(details))
		} else if macd[last] < 0 && macd[zeroPrev] >= 0 {
			g.emit(TypeMACDZeroCrossBearish, 0.7, cloneDetails(details))
		}
	}

	// Momentum: histogram carrying at least 10% of the MACD magnitude.
	if math.Abs(hist[last]) > math.Abs(macd[last])*0.1 {
		d := cloneDetails(details)
		d["momentum_strength"] = math.Abs(hist[last])
		if hist[last] > 0 && macd[last] > sig[last] {
			g.emit(TypeMACDBullishMomentum, 0.75, d)
		} else if hist[last] < 0 && macd[last] < sig[last] {
			g.emit(TypeMACDBearishMomentum, 0.75, d)
		}
	}
}

func (g *generator) bollinger() {
	upper, middle, lower := Bollinger(g.closes, 20, 2)
	n := len(g.closes)
	if anyNaN(upper[n-1], middle[n-1], lower[n-1]) {
		log.Debug().Str("asset", g.asset).Msg("Bollinger skipped: insufficient valid data")
		return
	}
	width := upper[n-1] - lower[n-1]
	position := 0.5
	if width > 0 {
		position = (g.price - lower[n-1]) / width
	}
	if g.price > upper[n-1] {
		g.emit(TypeBBBreakUpper, 0.65, map[string]float64{
			"price": g.price, "upper_band": upper[n-1], "middle_band": middle[n-1], "bb_position": position,
		})
	} else if g.price < lower[n-1] {
		g.emit(TypeBBBreakLower, 0.65, map[string]float64{
			"price": g.price, "lower_band": lower[n-1], "middle_band": middle[n-1], "bb_position": position,
		})
	}
}

func (g *generator) stochastic() {
	k, d := Stochastic(g.highs, g.lows, g.closes, 14, 3, 3)
	n := len(k)
	if n < 2 || anyNaN(k[n-1], d[n-1], k[n-2], d[n-2]) {
		log.Debug().Str("asset", g.asset).Msg("stochastic skipped: insufficient valid data")
		return
	}
	details := map[string]float64{"stoch_k": k[n-1], "stoch_d": d[n-1], "price": g.price}
	switch {
	case k[n-1] > d[n-1] && k[n-2] <= d[n-2] && k[n-1] < 20:
		g.emit(TypeStochBullishCross, 0.7, details)
	case k[n-1] < d[n-1] && k[n-2] >= d[n-2] && k[n-1] > 80:
		g.emit(TypeStochBearishCross, 0.7, details)
	}
}

func (g *generator) volume() {
	if len(g.volumes) < 20 {
		return
	}
	volSMA := SMA(g.volumes, 20)
	n := len(g.volumes)
	if math.IsNaN(volSMA[n-1]) || volSMA[n-1] <= 0 {
		log.Debug().Str("asset", g.asset).Msg("volume analysis skipped: no volume baseline")
		return
	}
	ratio := g.volumes[n-1] / volSMA[n-1]
	priceChangePct := (g.closes[n-1] - g.closes[n-2]) / g.closes[n-2] * 100

	if ratio > 1.5 && math.Abs(priceChangePct) > 1.0 {
		sigType := TypeVolumeBreakoutBull
		if priceChangePct < 0 {
			sigType = TypeVolumeBreakoutBear
		}
		conf := 0.6
		if ratio > 2.0 && math.Abs(priceChangePct) > 2.0 {
			conf = 0.7
		}
		g.emit(sigType, conf, map[string]float64{
			"volume_ratio": ratio, "price_change_pct": priceChangePct, "price": g.price,
		})
	}

	if ratio > 3.0 {
		g.emit(TypeVolumeSpike, 0.6, map[string]float64{"volume_ratio": ratio, "price": g.price})
	} else if ratio < 0.3 {
		g.emit(TypeVolumeDrought, 0.5, map[string]float64{"volume_ratio": ratio, "price": g.price})
	}

	if n >= 40 {
		volSMAShort := SMA(g.volumes, 10)
		if !math.IsNaN(volSMAShort[n-1]) && volSMAShort[n-1] > 0 {
			trend := volSMAShort[n-1] / volSMA[n-1]
			if trend > 1.2 {
				g.emit(TypeVolumeTrendUp, 0.5, map[string]float64{"volume_trend_ratio": trend, "price": g.price})
			} else if trend < 0.8 {
				g.emit(TypeVolumeTrendDown, 0.5, map[string]float64{"volume_trend_ratio": trend, "price": g.price})
			}
		}
	}
}

func (g *generator) priceAction() {
	n := len(g.closes)
	if n >= 5 {
		change1d := (g.closes[n-1] - g.closes[n-2]) / g.closes[n-2] * 100
		change3d := (g.closes[n-1] - g.closes[n-4]) / g.closes[n-4] * 100

		if math.Abs(change1d) > 3.0 {
			sigType := TypePriceStrongMoveUp
			if change1d < 0 {
				sigType = TypePriceStrongMoveDown
			}
			g.emit(sigType, 0.6, map[string]float64{"price_change_1d_pct": change1d, "price": g.price})
		}

		if math.Abs(change3d) > 5.0 && sameSign(change1d, change3d) {
			sigType := TypePriceMomentumUp
			if change3d < 0 {
				sigType = TypePriceMomentumDown
			}
			g.emit(sigType, 0.55, map[string]float64{"price_change_3d_pct": change3d, "price": g.price})
		}
	}

	if n >= 10 {
		recentHigh, recentLow := g.closes[n-10], g.closes[n-10]
		for _, c := range g.closes[n-10:] {
			recentHigh = math.Max(recentHigh, c)
			recentLow = math.Min(recentLow, c)
		}
		position := 0.5
		if recentHigh != recentLow {
			position = (g.price - recentLow) / (recentHigh - recentLow)
		}
		if position > 0.8 {
			g.emit(TypePriceNearRecentHigh, 0.5, map[string]float64{
				"position_in_range": position, "recent_high": recentHigh, "price": g.price,
			})
		} else if position < 0.2 {
			g.emit(TypePriceNearRecentLow, 0.5, map[string]float64{
				"position_in_range": position, "recent_low": recentLow, "price": g.price,
			})
		}
	}
}

func anyNaN(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}

func cloneDetails(d map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}
