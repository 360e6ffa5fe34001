package pipeline

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultStablecoinSymbols lists known fiat-pegged token symbols after
// suffix normalization. Pairs quoting one of these against another are
// excluded from screening: their price series carry no exploitable
// structure.
func DefaultStablecoinSymbols() map[string]struct{} {
	symbols := []string{
		"USDT", "USDC", "USDS", "USDE", "DAI", "SUSD", "USD1", "FDUSD", "PYUSD", "USDX",
		"BUSD", "TUSD", "USDP", "GUSD", "FRAX", "LUSD", "PAX", "EURA", "EURS",
		"ALUSD", "DOLA", "USDPLUS", "MIMATIC", "AGEUR", "JEUR", "CEUR",
		"USDD", "USTC", "USDH", "USDN", "USDK", "USDJ", "USDR",
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

// IsStablecoinPair reports whether an asset symbol like "USDC-USDT" or
// "USDS_2-USDC" is a stablecoin-vs-stablecoin pair. Symbols without a
// base-quote separator are never flagged.
func IsStablecoinPair(assetSymbol string, stablecoins map[string]struct{}) bool {
	base, quote, found := strings.Cut(assetSymbol, "-")
	if !found {
		return false
	}
	return isStableSymbol(base, stablecoins) && isStableSymbol(quote, stablecoins)
}

func isStableSymbol(symbol string, stablecoins map[string]struct{}) bool {
	norm := normalizeSymbol(symbol)
	if _, ok := stablecoins[norm]; ok {
		return true
	}
	return isUSDLike(norm)
}

// normalizeSymbol strips bridge/version suffixes ("USDC.E", "USDS_2")
// and maps aliases to their canonical symbol.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range []string{"_2", "_E", ".E", "_PLUS", "PLUS"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
		}
	}
	switch s {
	case "USD+":
		return "USDPLUS"
	case "MAI":
		return "MIMATIC"
	}
	return s
}

func isUSDLike(symbol string) bool {
	for _, pattern := range []string{"USD", "USDT", "USDC", "DAI", "DOLA", "MAI"} {
		if strings.Contains(symbol, pattern) {
			return true
		}
	}
	return strings.HasPrefix(symbol, "USD")
}

// FilterStablecoinPairs drops stablecoin-vs-stablecoin pairs from the
// candidate assets.
func FilterStablecoinPairs(assets []Asset, stablecoins map[string]struct{}) []Asset {
	kept := make([]Asset, 0, len(assets))
	var filtered []string
	for _, a := range assets {
		if IsStablecoinPair(a.Symbol, stablecoins) {
			filtered = append(filtered, a.Symbol)
			continue
		}
		kept = append(kept, a)
	}
	if len(filtered) > 0 {
		log.Info().Strs("pairs", filtered).Msg("filtered out stablecoin pairs")
	}
	return kept
}
