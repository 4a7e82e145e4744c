package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// OddWindow maps x to the nearest odd window length 2*floor((x+1)/2)-1,
// never below 3.
func OddWindow(x int) int {
	w := 2*((x+1)/2) - 1
	if x < 0 {
		w = -1
	}
	if w < 3 {
		return 3
	}
	return w
}

// SavitzkyGolayCoefficients returns correlation weights c such that the
// filtered sample at i is sum_j c[j]*x[i+j-window/2]. Spacing is one sample.
func SavitzkyGolayCoefficients(window, polyOrder, deriv int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("savitzky-golay window must be a positive odd number, got %d", window)
	}
	if polyOrder < 0 || polyOrder >= window {
		return nil, fmt.Errorf("savitzky-golay polyorder must be in [0, %d), got %d", window, polyOrder)
	}
	if deriv < 0 {
		return nil, fmt.Errorf("savitzky-golay derivative order must be non-negative, got %d", deriv)
	}

	c := make([]float64, window)
	if deriv > polyOrder {
		return c, nil
	}

	half := window / 2
	v := mat.NewDense(window, polyOrder+1, nil)
	for j := 0; j < window; j++ {
		x := float64(j - half)
		p := 1.0
		for k := 0; k <= polyOrder; k++ {
			v.Set(j, k, p)
			p *= x
		}
	}
	ones := make([]float64, window)
	for i := range ones {
		ones[i] = 1
	}

	// Least-squares solve against the identity yields the pseudo-inverse.
	var pinv mat.Dense
	if err := pinv.Solve(v, mat.NewDiagDense(window, ones)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("savitzky-golay fit: %w", err)
		}
	}

	scale := 1.0
	for k := 2; k <= deriv; k++ {
		scale *= float64(k)
	}
	for j := range c {
		c[j] = scale * pinv.At(deriv, j)
	}
	return c, nil
}

// SavitzkyGolay smooths x, or returns its deriv-th derivative per sample,
// by fitting a polyOrder polynomial over a sliding window. Samples beyond
// either edge repeat the edge value.
func SavitzkyGolay(x []float64, window, polyOrder, deriv int) ([]float64, error) {
	c, err := SavitzkyGolayCoefficients(window, polyOrder, deriv)
	if err != nil {
		return nil, err
	}
	n := len(x)
	out := make([]float64, n)
	half := window / 2
	for i := range x {
		var acc float64
		for j, w := range c {
			acc += w * x[clampIndex(i+j-half, n)]
		}
		out[i] = acc
	}
	return out, nil
}
