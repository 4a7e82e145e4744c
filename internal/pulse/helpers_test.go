package pulse

import "math"

func gauss(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-d * d / 2)
}

// beatShape is one second of a synthetic pressure wave: a systolic peak, a
// tidal shoulder and a dicrotic bump.
func beatShape(x float64) float64 {
	if x < 0 || x > 1 {
		return 0
	}
	return gauss(x, 0.15, 0.05) + 0.45*gauss(x, 0.30, 0.05) + 0.35*gauss(x, 0.50, 0.06)
}

// syntheticRecording samples beats starting at each of starts on top of a
// constant baseline.
func syntheticRecording(fs, duration float64, starts []float64) (times, values []float64) {
	n := int(fs * duration)
	times = make([]float64, n)
	values = make([]float64, n)
	for i := range times {
		t := float64(i) / fs
		times[i] = t
		v := 100.0
		for _, s := range starts {
			v += beatShape(t - s)
		}
		values[i] = v
	}
	return times, values
}

// beatStarts returns onsets at 1 Hz from -0.5 s, so every window holds a
// partial beat at each edge.
func beatStarts(count int) []float64 {
	out := make([]float64, count)
	for k := range out {
		out[k] = -0.5 + float64(k)
	}
	return out
}

// triangularDerivative places seven-sample bumps peaking at 1.0 on a zero
// derivative stream.
func triangularDerivative(n int, centres ...int) []float64 {
	der := make([]float64, n)
	shape := []float64{0.25, 0.5, 0.75, 1, 0.75, 0.5, 0.25}
	for _, c := range centres {
		for j, v := range shape {
			der[c+j-3] = v
		}
	}
	return der
}

func uniformTimes(n int, fs float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / fs
	}
	return t
}
