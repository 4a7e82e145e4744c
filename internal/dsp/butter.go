package dsp

import (
	"fmt"
	"math"
)

// Biquad is one second-order section with a0 normalised to 1. A first-order
// section leaves B2 and A2 at zero.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// dcGain is the section's response at z = 1.
func (q Biquad) dcGain() float64 {
	return (q.B0 + q.B1 + q.B2) / (1 + q.A1 + q.A2)
}

// SOS is a cascade of second-order sections applied in order.
type SOS []Biquad

// ButterLowPass designs a digital Butterworth low-pass filter of the given
// order through the bilinear transform with the cutoff pre-warped.
func ButterLowPass(order int, cutoffHz, sampleRateHz float64) (SOS, error) {
	if order < 1 {
		return nil, fmt.Errorf("butterworth order must be at least 1, got %d", order)
	}
	if sampleRateHz <= 0 || math.IsNaN(sampleRateHz) || math.IsInf(sampleRateHz, 0) {
		return nil, fmt.Errorf("sample rate must be positive and finite, got %f", sampleRateHz)
	}
	if cutoffHz <= 0 || cutoffHz >= sampleRateHz/2 {
		return nil, fmt.Errorf("cutoff %.3f Hz must lie in (0, %.3f) for sample rate %.3f Hz",
			cutoffHz, sampleRateHz/2, sampleRateHz)
	}

	k := math.Tan(math.Pi * cutoffHz / sampleRateHz)
	k2 := k * k
	sos := make(SOS, 0, (order+1)/2)
	for i := 0; i < order/2; i++ {
		// angle of the conjugate pole pair from the negative real axis
		phi := math.Pi * float64(order-1-2*i) / float64(2*order)
		q := 1 / (2 * math.Cos(phi))
		norm := 1 / (1 + k/q + k2)
		b0 := k2 * norm
		sos = append(sos, Biquad{
			B0: b0,
			B1: 2 * b0,
			B2: b0,
			A1: 2 * (k2 - 1) * norm,
			A2: (1 - k/q + k2) * norm,
		})
	}
	if order%2 == 1 {
		norm := 1 / (1 + k)
		sos = append(sos, Biquad{
			B0: k * norm,
			B1: k * norm,
			A1: (k - 1) * norm,
		})
	}
	return sos, nil
}

// padLen is the odd-extension length used by FiltFilt.
func (s SOS) padLen() int {
	firstOrder := 0
	for _, q := range s {
		if q.B2 == 0 && q.A2 == 0 {
			firstOrder++
		}
	}
	return 3 * (2*len(s) + 1 - firstOrder)
}

// steadyState returns the per-section initial state for a unit step input,
// each section scaled by the DC gain of the sections before it.
func (s SOS) steadyState() [][2]float64 {
	zi := make([][2]float64, len(s))
	scale := 1.0
	for i, q := range s {
		g := q.dcGain()
		zi[i] = [2]float64{scale * (g - q.B0), scale * (q.B2 - q.A2*g)}
		scale *= g
	}
	return zi
}

// Filter runs the cascade forward over x from a zero state.
func (s SOS) Filter(x []float64) []float64 {
	return s.run(x, make([][2]float64, len(s)), 0)
}

// FiltFilt applies the cascade forward then backward so the result has zero
// phase lag. The signal is extended at both ends by odd reflection and each
// pass starts from the steady state of its first sample to suppress edge
// transients. The output has the same length as x.
func (s SOS) FiltFilt(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if len(s) == 0 || n == 1 {
		copy(out, x)
		return out
	}

	pad := s.padLen()
	if pad >= n {
		pad = n - 1
	}
	ext := oddExtend(x, pad)
	zi := s.steadyState()

	y := s.run(ext, zi, ext[0])
	reverse(y)
	y = s.run(y, zi, y[0])
	reverse(y)

	copy(out, y[pad:pad+n])
	return out
}

// run is the transposed direct form II recurrence with state zi*x0.
func (s SOS) run(x []float64, zi [][2]float64, x0 float64) []float64 {
	state := make([][2]float64, len(s))
	for i := range s {
		state[i] = [2]float64{zi[i][0] * x0, zi[i][1] * x0}
	}
	y := make([]float64, len(x))
	for n, v := range x {
		for i, q := range s {
			o := q.B0*v + state[i][0]
			state[i][0] = q.B1*v - q.A1*o + state[i][1]
			state[i][1] = q.B2*v - q.A2*o
			v = o
		}
		y[n] = v
	}
	return y
}

func oddExtend(x []float64, pad int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := 1; i <= pad; i++ {
		ext = append(ext, 2*x[n-1]-x[n-1-i])
	}
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// LowPassFiltFilt designs a Butterworth low-pass and applies it with zero
// phase. A cutoff at or above Nyquist returns a copy of x unchanged.
func LowPassFiltFilt(x []float64, order int, cutoffHz, sampleRateHz float64) ([]float64, error) {
	if cutoffHz >= sampleRateHz/2 && sampleRateHz > 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}
	sos, err := ButterLowPass(order, cutoffHz, sampleRateHz)
	if err != nil {
		return nil, err
	}
	return sos.FiltFilt(x), nil
}
