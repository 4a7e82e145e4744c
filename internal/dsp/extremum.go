package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Extremum selects which kind of local extremum a search converges on.
type Extremum int

const (
	Minimum Extremum = iota
	Maximum
)

func (e Extremum) String() string {
	if e == Maximum {
		return "max"
	}
	return "min"
}

// worse reports whether candidate breaks the running extreme.
func (e Extremum) worse(candidate, best float64) bool {
	if e == Maximum {
		return candidate < best
	}
	return candidate > best
}

// overshootDivisor is the stride reduction applied after stepping past the
// extremum. Minimum searches contract harder than maximum searches.
func (e Extremum) overshootDivisor() float64 {
	if e == Maximum {
		return 2
	}
	return 8
}

// FindNearbyMinimum returns the index of the local minimum nearest start,
// walking in the direction of step. See FindNearbyExtremum.
func FindNearbyMinimum(data []float64, start, step, maxPoints int) int {
	return FindNearbyExtremum(data, start, step, maxPoints, Minimum)
}

// FindNearbyMaximum returns the index of the local maximum nearest start,
// walking in the direction of step. See FindNearbyExtremum.
func FindNearbyMaximum(data []float64, start, step, maxPoints int) int {
	return FindNearbyExtremum(data, start, step, maxPoints, Maximum)
}

// FindNearbyExtremum is a coarse-to-fine local search. It walks from start in
// strides of step (the sign picks the direction) for at most maxPoints
// samples while the running extreme holds, so small ripples shorter than the
// stride are stepped over. When a sample is worse it backs up one stride and
// recurses with a finer stride and the remaining budget. When the stride
// drops below one sample, or the budget is spent, it returns the exact
// extremum of the five samples centred on the current position.
//
// start is clamped into the data; the search never reads outside it. An
// empty slice returns -1.
func FindNearbyExtremum(data []float64, start, step, maxPoints int, kind Extremum) int {
	n := len(data)
	if n == 0 {
		return -1
	}
	start = clampIndex(start, n)
	if maxPoints < 0 {
		maxPoints = 0
	}
	if abs(step) < 1 || maxPoints == 0 {
		return windowExtremum(data, start, kind)
	}

	dir := 1
	if step < 0 {
		dir = -1
	}
	stop := start + dir*maxPoints
	if stop > n {
		stop = n
	}
	if stop < 0 {
		stop = 0
	}

	best, bestVal := start, data[start]
	for p := start; (dir > 0 && p < stop) || (dir < 0 && p > stop); p += step {
		if kind.worse(data[p], bestVal) {
			back := p - step
			finer := roundHalfEven(float64(step) / kind.overshootDivisor())
			return FindNearbyExtremum(data, back, finer, maxPoints-abs(back-start), kind)
		}
		best, bestVal = p, data[p]
	}

	return FindNearbyExtremum(data, best, roundHalfEven(float64(step)/2), maxPoints-1, kind)
}

// windowExtremum scans [idx-2, idx+2] clamped to the data. Ties resolve to
// the lowest index.
func windowExtremum(data []float64, idx int, kind Extremum) int {
	lo := idx - 2
	if lo < 0 {
		lo = 0
	}
	hi := idx + 3
	if hi > len(data) {
		hi = len(data)
	}
	if kind == Maximum {
		return lo + floats.MaxIdx(data[lo:hi])
	}
	return lo + floats.MinIdx(data[lo:hi])
}

func roundHalfEven(x float64) int {
	return int(math.RoundToEven(x))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
