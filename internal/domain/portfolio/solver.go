package portfolio

import (
	"math"
	"sort"
)

// minimizeOnSimplex minimizes f over the probability simplex
// {w : sum(w)=1, 0<=w<=1} by projected gradient descent with a
// backtracking line search. Gradients are taken numerically, so any
// smooth objective works. Returns the best iterate found; ok is false
// only when the objective never evaluated finite.
func minimizeOnSimplex(f func([]float64) float64, x0 []float64, maxIters int) (w []float64, ok bool) {
	n := len(x0)
	x := projectSimplex(append([]float64(nil), x0...))
	fx := f(x)
	if math.IsNaN(fx) || math.IsInf(fx, 0) {
		return x, false
	}

	grad := make([]float64, n)
	trial := make([]float64, n)
	const (
		gradStep = 1e-7
		tol      = 1e-10
	)

	for iter := 0; iter < maxIters; iter++ {
		for i := range x {
			orig := x[i]
			x[i] = orig + gradStep
			fPlus := f(x)
			x[i] = orig - gradStep
			fMinus := f(x)
			x[i] = orig
			grad[i] = (fPlus - fMinus) / (2 * gradStep)
		}

		improved := false
		for step := 1.0; step > 1e-12; step /= 2 {
			for i := range trial {
				trial[i] = x[i] - step*grad[i]
			}
			proj := projectSimplex(trial)
			fTrial := f(proj)
			if fTrial < fx-tol {
				copy(x, proj)
				fx = fTrial
				improved = true
				break
			}
		}
		if !improved {
			break
		}
	}
	return x, true
}

// projectSimplex is the Euclidean projection onto the probability
// simplex (Duchi et al. 2008). The result sums to one with every
// component in [0,1].
func projectSimplex(v []float64) []float64 {
	n := len(v)
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	theta := 0.0
	cumsum := 0.0
	for i := 0; i < n; i++ {
		cumsum += u[i]
		t := (cumsum - 1) / float64(i+1)
		if u[i]-t > 0 {
			theta = t
		}
	}

	out := make([]float64, n)
	for i, x := range v {
		out[i] = math.Max(x-theta, 0)
	}
	return out
}
