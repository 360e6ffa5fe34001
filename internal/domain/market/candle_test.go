package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortByTime(t *testing.T) {
	s := Series{
		{Timestamp: 300, Close: 3},
		{Timestamp: 100, Close: 1},
		{Timestamp: 200, Close: 2},
	}
	s.SortByTime()
	assert.Equal(t, []float64{1, 2, 3}, s.Closes())
}

func TestCloneIsIndependent(t *testing.T) {
	s := Series{{Timestamp: 1, Close: 100}}
	c := s.Clone()
	c[0].Close = 200
	assert.Equal(t, 100.0, s[0].Close)
}

func TestVolumesZeroesNaN(t *testing.T) {
	s := Series{
		{Volume: 10},
		{Volume: math.NaN()},
		{Volume: 30},
	}
	assert.Equal(t, []float64{10, 0, 30}, s.Volumes())
}

func TestLastClose(t *testing.T) {
	assert.True(t, math.IsNaN(Series{}.LastClose()))
	assert.Equal(t, 42.0, Series{{Close: 41}, {Close: 42}}.LastClose())
}

func TestFixOHLC(t *testing.T) {
	s := Series{
		{Open: 10, High: 12, Low: 9, Close: 11},  // consistent
		{Open: 10, High: 8, Low: 12, Close: 11},  // inverted bounds
		{Open: 10, High: 10.5, Low: 9, Close: 11}, // close above high
	}
	fixed := s.FixOHLC()
	require.Equal(t, 2, fixed)

	for _, c := range s {
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
	}
}

func TestHasFinitePrices(t *testing.T) {
	good := Series{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 0}}
	assert.True(t, good.HasFinitePrices())

	tests := []struct {
		name   string
		candle Candle
	}{
		{"nan close", Candle{Open: 1, High: 2, Low: 0.5, Close: math.NaN(), Volume: 1}},
		{"zero price", Candle{Open: 0, High: 2, Low: 0.5, Close: 1, Volume: 1}},
		{"negative volume", Candle{Open: 1, High: 2, Low: 0.5, Close: 1, Volume: -1}},
		{"inf high", Candle{Open: 1, High: math.Inf(1), Low: 0.5, Close: 1, Volume: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Series{tt.candle}.HasFinitePrices())
		})
	}
}
