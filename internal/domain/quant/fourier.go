package quant

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/elbarroca/eth-global-prague/internal/domain/stats"
)

// fourierMinPoints is the floor for reliable spectral detrending.
const fourierMinPoints = 50

// DefaultRemoveFraction is the normalized-frequency cutoff below which
// coefficients are zeroed during detrending.
const DefaultRemoveFraction = 0.05

var errDetrendFailed = errors.New("fourier detrend produced non-finite values")

// Detrend removes low-frequency (trend) components from a price series by
// zeroing every FFT coefficient whose normalized frequency is below
// removeFraction, then inverse-transforming. Requires at least 50 finite
// prices; fails softly with an error, never panics.
func Detrend(prices []float64, removeFraction float64) ([]float64, error) {
	clean := finite(prices)
	if len(clean) < fourierMinPoints {
		return nil, fmt.Errorf("%w: %d prices, need %d for detrending", ErrInsufficientData, len(clean), fourierMinPoints)
	}

	n := len(clean)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, clean)

	// Real FFT coefficient k carries normalized frequency k/n; the
	// conjugate-symmetric negative frequencies are implicit.
	for k := range coeffs {
		if float64(k)/float64(n) < removeFraction {
			coeffs[k] = 0
		}
	}

	detrended := fft.Sequence(nil, coeffs)
	for i := range detrended {
		detrended[i] /= float64(n)
		if math.IsNaN(detrended[i]) || math.IsInf(detrended[i], 0) {
			return nil, errDetrendFailed
		}
	}
	return detrended, nil
}

// fourierBands is the statistical-arbitrage band analysis of a detrended
// price series: a rolling local mean with adaptive bands one global
// standard deviation wide.
type fourierBands struct {
	Signal       string // "Buy", "Sell" or "Hold"
	Strength     float64
	Detrended    float64
	UpperBand    float64
	LowerBand    float64
	GlobalStdDev float64
	ZScore       float64
}

// analyzeFourierBands detrends the series and evaluates band crossings at
// the latest bar. A buy fires when the detrended value re-enters the band
// from below, a sell when it re-enters from above; strength is the
// crossing distance normalized by the global std-dev, clipped to [0,1].
func analyzeFourierBands(prices []float64, removeFraction float64, smaWindow int) (*fourierBands, error) {
	detrended, err := Detrend(prices, removeFraction)
	if err != nil {
		return nil, err
	}

	globalStd := stats.StdDev(detrended)
	if math.IsNaN(globalStd) || globalStd < 1e-8 {
		return nil, fmt.Errorf("%w: degenerate detrended std-dev %g", ErrNoVariance, globalStd)
	}

	minPeriods := smaWindow / 2
	if minPeriods < 1 {
		minPeriods = 1
	}
	localMean := stats.RollingMean(detrended, smaWindow, minPeriods)

	n := len(detrended)
	if n < 2 {
		return nil, ErrInsufficientData
	}
	cur, prev := detrended[n-1], detrended[n-2]
	curMean, prevMean := localMean[n-1], localMean[n-2]
	curUpper, curLower := curMean+globalStd, curMean-globalStd
	prevUpper, prevLower := prevMean+globalStd, prevMean-globalStd

	out := &fourierBands{
		Signal:       "Hold",
		Detrended:    cur,
		UpperBand:    curUpper,
		LowerBand:    curLower,
		GlobalStdDev: globalStd,
		ZScore:       math.NaN(),
	}
	if !math.IsNaN(curMean) {
		out.ZScore = (cur - curMean) / globalStd
	}

	if anyNaN(cur, prev, curMean, prevMean) {
		return out, nil
	}
	switch {
	case prev <= prevLower && cur > curLower:
		out.Signal = "Buy"
		out.Strength = math.Min(math.Abs(cur-curLower)/globalStd, 1.0)
	case prev >= prevUpper && cur < curUpper:
		out.Signal = "Sell"
		out.Strength = math.Min(math.Abs(cur-curUpper)/globalStd, 1.0)
	}
	return out, nil
}

func anyNaN(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
