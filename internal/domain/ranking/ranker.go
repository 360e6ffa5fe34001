// Package ranking turns per-asset signal sets into a deterministic,
// weighted asset ordering used to select the portfolio candidate universe.
package ranking

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/elbarroca/eth-global-prague/internal/domain/signal"
)

// Config carries the per-signal-type weights. Positive weights are
// bullish, negative bearish; a type missing from both maps contributes
// zero score but still counts toward the asset's signal tally.
type Config struct {
	QuantWeights map[string]float64 `yaml:"quant_weights"`
	TAWeights    map[string]float64 `yaml:"ta_weights"`
}

// DefaultConfig returns the built-in weight tables.
func DefaultConfig() Config {
	return Config{
		QuantWeights: map[string]float64{
			// Strong bullish
			"QUANT_FOURIER_MEAN_REVERSION_BUY":              2.0,
			"QUANT_MEANREVERT_OVEREXTENDED_LOW":             1.8,
			"QUANT_MOMENTUM_HIGH_SHARPE":                    1.5,
			"QUANT_FOURIER_EXTREME_DEVIATION_LOW":           1.4,
			"QUANT_REGIME_STRONG_UPTREND":                   1.3,
			"QUANT_DISTRIBUTION_POSITIVE_SKEW_OPPORTUNITY":  1.0,

			// Moderate bullish
			"QUANT_VOL_REGIME_LOW":                   0.8,
			"QUANT_LIQUIDITY_BULLISH_VPT_DIVERGENCE": 0.7,
			"QUANT_VOL_RISK_PREMIUM_LOW":             0.6,
			"QUANT_LIQUIDITY_VOLUME_SPIKE":           0.5,

			// Strong bearish / risk
			"QUANT_FOURIER_MEAN_REVERSION_SELL":      -2.0,
			"QUANT_MEANREVERT_OVEREXTENDED_HIGH":     -1.8,
			"QUANT_CVAR95_HIGH_RISK":                 -1.7,
			"QUANT_MOMENTUM_NEGATIVE_SHARPE":         -1.5,
			"QUANT_FOURIER_EXTREME_DEVIATION_HIGH":   -1.4,
			"QUANT_REGIME_STRONG_DOWNTREND":          -1.3,
			"QUANT_DISTRIBUTION_NEGATIVE_SKEW_RISK":  -1.2,
			"QUANT_DISTRIBUTION_HIGH_KURTOSIS_RISK":  -1.1,

			// Moderate bearish
			"QUANT_GARCH_HIGH_VOL_FORECAST":          -1.0,
			"QUANT_VOL_REGIME_HIGH":                  -0.9,
			"QUANT_LIQUIDITY_BEARISH_VPT_DIVERGENCE": -0.8,
			"QUANT_VOL_RISK_PREMIUM_HIGH":            -0.7,
			"QUANT_MOMENTUM_BEARISH_DIVERGENCE":      -0.6,
			"QUANT_LIQUIDITY_VOLUME_DROUGHT":         -0.5,
		},
		TAWeights: map[string]float64{
			// Bullish
			"TA_MACD_CROSS_BULLISH":      1.5,
			"TA_MA_CROSS_BULLISH":        1.3,
			"TA_STOCH_BULLISH_CROSS":     1.0,
			"TA_RSI_OVERSOLD":            0.9,
			"TA_MACD_BULLISH_MOMENTUM":   0.8,
			"TA_MACD_ZERO_CROSS_BULLISH": 0.8,
			"TA_BB_BREAK_LOWER":          0.7,
			"TA_VOLUME_BREAKOUT_BULLISH": 0.6,
			"TA_PRICE_NEAR_RECENT_LOW":   0.5,

			// Bearish
			"TA_MACD_CROSS_BEARISH":      -1.5,
			"TA_MA_CROSS_BEARISH":        -1.3,
			"TA_STOCH_BEARISH_CROSS":     -1.0,
			"TA_RSI_OVERBOUGHT":          -0.9,
			"TA_MACD_BEARISH_MOMENTUM":   -0.8,
			"TA_MACD_ZERO_CROSS_BEARISH": -0.8,
			"TA_BB_BREAK_UPPER":          -0.7,
			"TA_VOLUME_BREAKOUT_BEARISH": -0.6,
			"TA_PRICE_NEAR_RECENT_HIGH":  -0.5,
		},
	}
}

// RankedAsset is one row of the ranking output.
type RankedAsset struct {
	Asset           string  `json:"asset" db:"asset"`
	Score           float64 `json:"score" db:"score"`
	NumSignals      int     `json:"num_signals" db:"num_signals"`
	NumBullish      int     `json:"num_bullish" db:"num_bullish"`
	NumBearish      int     `json:"num_bearish" db:"num_bearish"`
	MaxBullishConf  float64 `json:"max_bullish_conf" db:"max_bullish_conf"`
	MaxBearishConf  float64 `json:"max_bearish_conf" db:"max_bearish_conf"`
	AvgConfidence   float64 `json:"avg_confidence" db:"avg_confidence"`
	SignalBalance   int     `json:"signal_balance" db:"signal_balance"`
	SignalQuality   float64 `json:"signal_quality" db:"signal_quality"`
	SignalDiversity float64 `json:"signal_diversity" db:"signal_diversity"`
	QuantTypes      int     `json:"quant_signals" db:"quant_signals"`
	TATypes         int     `json:"ta_signals" db:"ta_signals"`
}

// RankAssets scores every asset in signalsByAsset plus every symbol in
// universe (assets without signals rank with a zero score, so the output
// always covers the whole candidate set) and returns them best-first.
//
// An asset's score is the confidence-weighted sum of its signal weights
// plus a small diversity bonus for drawing on distinct signal types from
// both generator families. Ties break on signal quality, diversity,
// average confidence, bullish count and best bullish confidence, then on
// symbol for determinism.
func RankAssets(signalsByAsset map[string][]signal.Signal, universe []string, cfg Config) []RankedAsset {
	assets := make(map[string]struct{}, len(signalsByAsset)+len(universe))
	for _, a := range universe {
		assets[a] = struct{}{}
	}
	for a := range signalsByAsset {
		assets[a] = struct{}{}
	}
	if len(assets) == 0 {
		return nil
	}

	ranked := make([]RankedAsset, 0, len(assets))
	for asset := range assets {
		ranked = append(ranked, scoreAsset(asset, signalsByAsset[asset], cfg))
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SignalQuality != b.SignalQuality {
			return a.SignalQuality > b.SignalQuality
		}
		if a.SignalDiversity != b.SignalDiversity {
			return a.SignalDiversity > b.SignalDiversity
		}
		if a.AvgConfidence != b.AvgConfidence {
			return a.AvgConfidence > b.AvgConfidence
		}
		if a.NumBullish != b.NumBullish {
			return a.NumBullish > b.NumBullish
		}
		if a.MaxBullishConf != b.MaxBullishConf {
			return a.MaxBullishConf > b.MaxBullishConf
		}
		return a.Asset < b.Asset
	})

	log.Info().Int("assets", len(ranked)).Msg("ranked assets")
	return ranked
}

func scoreAsset(asset string, signals []signal.Signal, cfg Config) RankedAsset {
	var (
		totalScore        float64
		weightedConfSum   float64
		totalWeightAbs    float64
		numBullish        int
		numBearish        int
		maxBullConf       float64
		maxBearConf       float64
		quantTypes        = map[string]struct{}{}
		taTypes           = map[string]struct{}{}
	)

	for _, s := range signals {
		var weight float64
		switch {
		case s.IsQuant():
			weight = cfg.QuantWeights[s.SignalType]
			quantTypes[s.SignalType] = struct{}{}
		case s.IsTA():
			weight = cfg.TAWeights[s.SignalType]
			taTypes[s.SignalType] = struct{}{}
		}

		conf := s.Confidence
		totalScore += weight * conf
		if weight > 0 {
			weightedConfSum += weight * conf
			totalWeightAbs += weight
			numBullish++
			if conf > maxBullConf {
				maxBullConf = conf
			}
		} else if weight < 0 {
			weightedConfSum += -weight * conf
			totalWeightAbs += -weight
			numBearish++
			if conf > maxBearConf {
				maxBearConf = conf
			}
		}
	}

	diversity := float64(len(quantTypes))*0.1 + float64(len(taTypes))*0.1
	if len(quantTypes) > 0 && len(taTypes) > 0 {
		diversity += 0.2
	}

	score := totalScore
	avgConf := 0.0
	if totalWeightAbs > 0 {
		score = totalScore + diversity
		avgConf = weightedConfSum / totalWeightAbs
	}

	return RankedAsset{
		Asset:           asset,
		Score:           score,
		NumSignals:      len(signals),
		NumBullish:      numBullish,
		NumBearish:      numBearish,
		MaxBullishConf:  maxBullConf,
		MaxBearishConf:  maxBearConf,
		AvgConfidence:   avgConf,
		SignalBalance:   numBullish - numBearish,
		SignalQuality:   (maxBullConf - maxBearConf) * 0.5,
		SignalDiversity: diversity,
		QuantTypes:      len(quantTypes),
		TATypes:         len(taTypes),
	}
}
