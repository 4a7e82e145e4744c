package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineWave(n int, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	return out
}

func TestFindNearbyExtremum_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, -1, FindNearbyMinimum(nil, 0, 1, 10))
	assert.Equal(t, -1, FindNearbyMaximum([]float64{}, 3, -1, 10))
}

func TestFindNearbyExtremum_FindsSinePeaks(t *testing.T) {
	t.Parallel()
	data := sineWave(400, 100) // peaks at 25, 125, ...; troughs at 75, 175, ...

	tests := []struct {
		name  string
		start int
		step  int
		kind  Extremum
		want  int
	}{
		{"max forward", 5, 4, Maximum, 25},
		{"max backward", 45, -4, Maximum, 25},
		{"min forward", 30, 5, Minimum, 75},
		{"min backward", 95, -1, Minimum, 75},
		{"max fine stride", 110, 1, Maximum, 125},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FindNearbyExtremum(data, tt.start, tt.step, 200, tt.kind)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindNearbyExtremum_StartClamped(t *testing.T) {
	t.Parallel()
	data := []float64{5, 4, 3, 2, 1}

	got := FindNearbyMinimum(data, 50, -1, 10)
	assert.GreaterOrEqual(t, got, 0)
	assert.Less(t, got, len(data))
	assert.Equal(t, 4, got)

	got = FindNearbyMaximum(data, -7, 1, 10)
	assert.Equal(t, 0, got)
}

func TestFindNearbyExtremum_ZeroBudgetScansWindow(t *testing.T) {
	t.Parallel()
	data := []float64{9, 3, 7, 1, 8, 0, 6}
	// window [1, 5] around 3
	assert.Equal(t, 5, FindNearbyMinimum(data, 3, 4, 0))
	assert.Equal(t, 4, FindNearbyMaximum(data, 3, 4, 0))
	// stride below one sample behaves the same
	assert.Equal(t, 5, FindNearbyMinimum(data, 3, 0, 100))
}

func TestFindNearbyExtremum_TiesResolveLow(t *testing.T) {
	t.Parallel()
	data := []float64{1, 1, 1, 1, 1}
	assert.Equal(t, 0, FindNearbyMinimum(data, 2, 0, 0))
	assert.Equal(t, 0, FindNearbyMaximum(data, 2, 0, 0))
}

func TestFindNearbyExtremum_BaseCaseMatchesBruteForce(t *testing.T) {
	t.Parallel()
	data := []float64{0.3, -1.2, 4.4, 0.1, 0.1, 2.8, -3.5, 1.9, 1.9, 0.0, 7.2, -0.4}
	n := len(data)
	for idx := 0; idx < n; idx++ {
		lo, hi := idx-2, idx+2
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		wantMin, wantMax := lo, lo
		for j := lo; j <= hi; j++ {
			if data[j] < data[wantMin] {
				wantMin = j
			}
			if data[j] > data[wantMax] {
				wantMax = j
			}
		}
		assert.Equal(t, wantMin, FindNearbyMinimum(data, idx, 5, 0), "min idx=%d", idx)
		assert.Equal(t, wantMax, FindNearbyMaximum(data, idx, -5, 0), "max idx=%d", idx)
		assert.Equal(t, wantMin, FindNearbyMinimum(data, idx, 0, 50), "min zero step idx=%d", idx)
	}
}

func TestFindNearbyExtremum_HopsOverRipple(t *testing.T) {
	t.Parallel()
	// rising ramp with a small dip at 10 that a coarse stride steps over
	data := make([]float64, 40)
	for i := range data {
		data[i] = float64(i)
		if i > 30 {
			data[i] = float64(60 - i)
		}
	}
	data[10] = 8.5
	assert.Equal(t, 30, FindNearbyMaximum(data, 0, 4, 40))
}

func TestFindNearbyExtremum_StaysInBounds(t *testing.T) {
	t.Parallel()
	data := sineWave(64, 9)
	for start := -5; start < 70; start += 3 {
		for _, step := range []int{-16, -3, -1, 1, 2, 16} {
			got := FindNearbyMinimum(data, start, step, 1000)
			assert.True(t, got >= 0 && got < len(data), "start=%d step=%d got=%d", start, step, got)
			got = FindNearbyMaximum(data, start, step, 1000)
			assert.True(t, got >= 0 && got < len(data), "start=%d step=%d got=%d", start, step, got)
		}
	}
}

func TestRoundHalfEven(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, roundHalfEven(0.5))
	assert.Equal(t, 2, roundHalfEven(1.5))
	assert.Equal(t, 2, roundHalfEven(2.5))
	assert.Equal(t, -2, roundHalfEven(-2.5))
	assert.Equal(t, 0, roundHalfEven(0.125))
}
