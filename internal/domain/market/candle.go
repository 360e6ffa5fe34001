package market

import (
	"math"
	"sort"
)

// Candle is one OHLCV bar. Timestamp is unix seconds.
type Candle struct {
	Timestamp int64   `json:"timestamp" db:"ts"`
	Open      float64 `json:"open" db:"open"`
	High      float64 `json:"high" db:"high"`
	Low       float64 `json:"low" db:"low"`
	Close     float64 `json:"close" db:"close"`
	Volume    float64 `json:"volume" db:"volume"`
}

// Series is an ordered candle sequence for one (asset, chain, pair, granularity).
type Series []Candle

// SortByTime orders the series by ascending timestamp in place.
func (s Series) SortByTime() {
	sort.Slice(s, func(i, j int) bool { return s[i].Timestamp < s[j].Timestamp })
}

// Clone returns a private copy; generators must not mutate caller data.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high column.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low column.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume column. NaN volumes are zeroed so
// volume-based indicators keep working on sparse DEX data.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		if math.IsNaN(c.Volume) {
			out[i] = 0
		} else {
			out[i] = c.Volume
		}
	}
	return out
}

// LastClose returns the most recent close, or NaN for an empty series.
func (s Series) LastClose() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1].Close
}

// FixOHLC repairs rows whose high/low violate the OHLC ordering
// (high must bound open/close/low from above, low from below).
// Returns the number of repaired rows.
func (s Series) FixOHLC() int {
	fixed := 0
	for i := range s {
		c := &s[i]
		bad := c.High < c.Low || c.High < c.Open || c.High < c.Close ||
			c.Low > c.Open || c.Low > c.Close
		if !bad {
			continue
		}
		c.High = math.Max(c.Open, c.Close)
		c.Low = math.Min(c.Open, c.Close)
		fixed++
	}
	return fixed
}

// HasFinitePrices reports whether every OHLC value is finite and positive
// and volume is finite and non-negative.
func (s Series) HasFinitePrices() bool {
	for _, c := range s {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return false
			}
		}
		if math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return false
		}
	}
	return true
}
