package ta

import (
	"math"

	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
)

// Indicator kernels. Each returns a slice the same length as its input
// with NaN over the warm-up prefix, so bar indices line up across
// indicators the same way they do in the candle series.

// SMA is a simple moving average with a window-1 NaN prefix.
func SMA(xs []float64, period int) []float64 {
	out := stats.NaNs(len(xs))
	if period <= 0 || len(xs) < period {
		return out
	}
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is an exponential moving average seeded with the SMA of the first
// `period` values, matching the conventional TA definition.
func EMA(xs []float64, period int) []float64 {
	out := stats.NaNs(len(xs))
	if period <= 0 || len(xs) < period {
		return out
	}
	seed := 0.0
	for _, x := range xs[:period] {
		seed += x
	}
	seed /= float64(period)
	out[period-1] = seed
	alpha := 2.0 / (float64(period) + 1)
	prev := seed
	for i := period; i < len(xs); i++ {
		prev = alpha*xs[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI is Wilder's relative strength index.
func RSI(closes []float64, period int) []float64 {
	out := stats.NaNs(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram for the given
// fast/slow/signal periods.
func MACD(closes []float64, fast, slow, signalPeriod int) (macd, sig, hist []float64) {
	n := len(closes)
	macd = stats.NaNs(n)
	sig = stats.NaNs(n)
	hist = stats.NaNs(n)
	if n < slow+signalPeriod-1 {
		return macd, sig, hist
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	// Signal line: EMA of the MACD line over its valid region.
	valid := macd[slow-1:]
	sigValid := EMA(valid, signalPeriod)
	for i, v := range sigValid {
		if !math.IsNaN(v) {
			sig[slow-1+i] = v
			hist[slow-1+i] = macd[slow-1+i] - v
		}
	}
	return macd, sig, hist
}

// Bollinger returns the upper, middle and lower Bollinger bands using a
// simple moving average and population standard deviation.
func Bollinger(closes []float64, period int, numStd float64) (upper, middle, lower []float64) {
	n := len(closes)
	upper = stats.NaNs(n)
	lower = stats.NaNs(n)
	middle = SMA(closes, period)
	if period <= 0 || n < period {
		return upper, middle, lower
	}
	for i := period - 1; i < n; i++ {
		sd := stats.PopStdDev(closes[i-period+1 : i+1])
		upper[i] = middle[i] + numStd*sd
		lower[i] = middle[i] - numStd*sd
	}
	return upper, middle, lower
}

// Stochastic returns the slow %K and %D lines (fastK period, slowed by
// simple moving averages of the given lengths).
func Stochastic(highs, lows, closes []float64, fastK, slowK, slowD int) (k, d []float64) {
	n := len(closes)
	fast := stats.NaNs(n)
	for i := fastK - 1; i < n; i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - fastK + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh == ll {
			fast[i] = 50
			continue
		}
		fast[i] = 100 * (closes[i] - ll) / (hh - ll)
	}
	k = smaValid(fast, slowK)
	d = smaValid(k, slowD)
	return k, d
}

// smaValid applies an SMA over the valid (non-NaN) suffix of xs,
// preserving alignment.
func smaValid(xs []float64, period int) []float64 {
	out := stats.NaNs(len(xs))
	first := -1
	for i, x := range xs {
		if !math.IsNaN(x) {
			first = i
			break
		}
	}
	if first < 0 || len(xs)-first < period {
		return out
	}
	sm := SMA(xs[first:], period)
	copy(out[first:], sm)
	return out
}
