package dsp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	modPolyMaxRepetitions = 100
	modPolyGradient       = 0.001
)

// ModPoly removes a polynomial baseline of the given degree with the
// modified polyfit method: fit, clamp the working signal to the fit from
// above, refit, until the residual spread settles. It returns x minus the
// final fit.
func ModPoly(x []float64, degree int) ([]float64, error) {
	n := len(x)
	if degree < 0 {
		return nil, fmt.Errorf("baseline degree must be non-negative, got %d", degree)
	}
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	if n <= degree {
		// not enough points to fit; the best baseline is the signal itself
		return out, nil
	}

	v := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		t := float64(i + 1)
		p := 1.0
		for k := 0; k <= degree; k++ {
			v.Set(i, k, p)
			p *= t
		}
	}
	var qr mat.QR
	qr.Factorize(v)

	work := make([]float64, n)
	copy(work, x)
	pred := make([]float64, n)
	resid := make([]float64, n)

	fit := func() error {
		var coef, p mat.VecDense
		if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(n, work)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("baseline fit: %w", err)
			}
		}
		p.MulVec(v, &coef)
		for i := range pred {
			pred[i] = p.AtVec(i)
		}
		return nil
	}

	if err := fit(); err != nil {
		return nil, err
	}
	for i := range resid {
		resid[i] = x[i] - pred[i]
	}
	prevDev := stat.StdDev(resid, nil)

	for rep := 1; rep <= modPolyMaxRepetitions; rep++ {
		for i := range work {
			if work[i] > pred[i] {
				work[i] = pred[i]
			}
		}
		if err := fit(); err != nil {
			return nil, err
		}
		for i := range resid {
			resid[i] = work[i] - pred[i]
		}
		dev := stat.StdDev(resid, nil)
		if dev == 0 || math.IsNaN(dev) {
			break
		}
		gradient := math.Abs((dev - prevDev) / dev)
		prevDev = dev
		if gradient < modPolyGradient {
			break
		}
	}

	for i := range out {
		out[i] = x[i] - pred[i]
	}
	return out, nil
}

// RemoveBaseline applies a linear ModPoly twice, which flattens the tilt a
// beat picks up from its neighbours.
func RemoveBaseline(x []float64) ([]float64, error) {
	once, err := ModPoly(x, 1)
	if err != nil {
		return nil, err
	}
	return ModPoly(once, 1)
}
