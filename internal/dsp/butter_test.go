package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButterLowPass_Sections(t *testing.T) {
	t.Parallel()
	sos, err := ButterLowPass(3, 18, 200)
	require.NoError(t, err)
	require.Len(t, sos, 2)
	assert.Equal(t, 12, sos.padLen())

	// unit DC gain through the cascade
	gain := 1.0
	for _, q := range sos {
		gain *= q.dcGain()
	}
	assert.InDelta(t, 1.0, gain, 1e-12)

	sos, err = ButterLowPass(4, 10, 100)
	require.NoError(t, err)
	assert.Len(t, sos, 2)
	assert.Equal(t, 15, sos.padLen())
}

func TestButterLowPass_Invalid(t *testing.T) {
	t.Parallel()
	_, err := ButterLowPass(0, 10, 100)
	assert.Error(t, err)
	_, err = ButterLowPass(3, 50, 100)
	assert.Error(t, err)
	_, err = ButterLowPass(3, -1, 100)
	assert.Error(t, err)
	_, err = ButterLowPass(3, 10, 0)
	assert.Error(t, err)
}

func TestFiltFilt_ConstantPassesThrough(t *testing.T) {
	t.Parallel()
	sos, err := ButterLowPass(3, 18, 200)
	require.NoError(t, err)

	x := make([]float64, 100)
	for i := range x {
		x[i] = 2.5
	}
	y := sos.FiltFilt(x)
	require.Len(t, y, len(x))
	for i := range y {
		assert.InDelta(t, 2.5, y[i], 1e-9, "sample %d", i)
	}
}

func TestFiltFilt_AttenuatesHighFrequency(t *testing.T) {
	t.Parallel()
	const fs = 200.0
	sos, err := ButterLowPass(3, 18, fs)
	require.NoError(t, err)

	n := 800
	slow := make([]float64, n)
	mixed := make([]float64, n)
	for i := range mixed {
		tt := float64(i) / fs
		slow[i] = math.Sin(2 * math.Pi * 1.2 * tt)
		mixed[i] = slow[i] + 0.5*math.Sin(2*math.Pi*70*tt)
	}
	y := sos.FiltFilt(mixed)

	var errSum float64
	for i := 100; i < n-100; i++ {
		errSum += math.Abs(y[i] - slow[i])
	}
	assert.Less(t, errSum/float64(n-200), 0.01)
}

func TestFiltFilt_ZeroPhase(t *testing.T) {
	t.Parallel()
	sos, err := ButterLowPass(3, 18, 200)
	require.NoError(t, err)

	// symmetric pulse keeps its peak where it was
	x := make([]float64, 201)
	for i := range x {
		d := float64(i-100) / 10
		x[i] = math.Exp(-d * d)
	}
	y := sos.FiltFilt(x)
	assert.Equal(t, 100, ArgMax(y))
}

func TestFiltFilt_ShortInputs(t *testing.T) {
	t.Parallel()
	sos, err := ButterLowPass(3, 18, 200)
	require.NoError(t, err)

	assert.Empty(t, sos.FiltFilt(nil))
	assert.Equal(t, []float64{4}, sos.FiltFilt([]float64{4}))

	short := []float64{1, 2, 3, 2, 1}
	y := sos.FiltFilt(short)
	assert.Len(t, y, len(short))
	assert.True(t, AllFinite(y))
}

func TestLowPassFiltFilt_CutoffAboveNyquist(t *testing.T) {
	t.Parallel()
	x := []float64{1, 5, 2, 8}
	y, err := LowPassFiltFilt(x, 3, 18, 20)
	require.NoError(t, err)
	assert.Equal(t, x, y)
	y[0] = 99
	assert.Equal(t, 1.0, x[0])
}
