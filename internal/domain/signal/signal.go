// Package signal defines the Signal record produced by the TA and quant
// generators and consumed by the ranker and the persistence layer.
package signal

import (
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Family prefixes. Every signal type is namespaced by its generator.
const (
	PrefixTA    = "TA_"
	PrefixQuant = "QUANT_"
)

// Signal is one generated trading signal. Immutable once produced.
type Signal struct {
	AssetSymbol      string             `json:"asset_symbol" db:"asset_symbol"`
	SignalType       string             `json:"signal_type" db:"signal_type"`
	Confidence       float64            `json:"confidence" db:"confidence"`
	Details          map[string]float64 `json:"details"`
	Timestamp        int64              `json:"timestamp" db:"ts"`
	ChainID          int64              `json:"chain_id" db:"chain_id"`
	BaseTokenAddress string             `json:"base_token_address" db:"base_token_address"`
}

// IsTA reports whether the signal came from the technical generator.
func (s Signal) IsTA() bool { return strings.HasPrefix(s.SignalType, PrefixTA) }

// IsQuant reports whether the signal came from the quant generator.
func (s Signal) IsQuant() bool { return strings.HasPrefix(s.SignalType, PrefixQuant) }

// Factory stamps asset identity and a shared timestamp onto every signal a
// generator emits, and centralizes the normalization rules: confidence is
// clamped into [0,1] and non-finite detail values are dropped outright
// rather than substituted.
type Factory struct {
	AssetSymbol      string
	ChainID          int64
	BaseTokenAddress string
	Timestamp        int64
}

// NewFactory builds a factory stamping signals with the current time.
func NewFactory(asset string, chainID int64, tokenAddress string) Factory {
	return Factory{
		AssetSymbol:      asset,
		ChainID:          chainID,
		BaseTokenAddress: tokenAddress,
		Timestamp:        time.Now().Unix(),
	}
}

// New constructs a validated Signal.
func (f Factory) New(signalType string, confidence float64, details map[string]float64) Signal {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	if confidence < 0 || confidence > 1 {
		log.Warn().
			Str("signal_type", signalType).
			Str("asset", f.AssetSymbol).
			Float64("confidence", confidence).
			Msg("clamping signal confidence into [0,1]")
		confidence = math.Min(math.Max(confidence, 0), 1)
	}
	clean := make(map[string]float64, len(details))
	for k, v := range details {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			log.Warn().
				Str("signal_type", signalType).
				Str("detail", k).
				Msg("dropping non-finite detail value")
			continue
		}
		clean[k] = v
	}
	return Signal{
		AssetSymbol:      f.AssetSymbol,
		SignalType:       signalType,
		Confidence:       confidence,
		Details:          clean,
		Timestamp:        f.Timestamp,
		ChainID:          f.ChainID,
		BaseTokenAddress: f.BaseTokenAddress,
	}
}
