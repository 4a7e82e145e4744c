package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// TrimMean is the mean after dropping floor(proportion*n) of the smallest
// and of the largest values. NaN for an empty slice.
func TrimMean(values []float64, proportion float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	cut := int(proportion * float64(n))
	if cut < 0 || 2*cut >= n {
		cut = 0
	}
	return stat.Mean(sorted[cut:n-cut], nil)
}

// Integrate approximates the integral of f sampled at x with Simpson's rule.
// Two samples fall back to the trapezoid; fewer integrate to zero.
func Integrate(x, f []float64) float64 {
	switch {
	case len(x) != len(f) || len(x) < 2:
		return 0
	case len(x) == 2:
		return integrate.Trapezoidal(x, f)
	}
	return integrate.Simpsons(x, f)
}

// IntegrateAbs integrates |f|.
func IntegrateAbs(x, f []float64) float64 {
	a := make([]float64, len(f))
	for i, v := range f {
		a[i] = math.Abs(v)
	}
	return Integrate(x, a)
}

// ArgMax returns the index of the first largest value, -1 when empty.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

// Max returns the largest value, NaN when empty.
func Max(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Max(x)
}

// AllFinite reports whether no element is NaN or infinite.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
