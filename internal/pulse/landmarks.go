package pulse

import "github.com/banshee-data/pulse.report/internal/dsp"

// Landmarks are sample indices into a Beat. The search helpers
// (TidalBuffer, TidalStart, TidalStartAlt) are kept for plotting.
type Landmarks struct {
	SystolicPeak     int
	UpstrokeVel      int
	UpstrokeAccelMax int
	UpstrokeAccelMin int

	TidalBuffer   int
	TidalStart    int
	TidalStartAlt int
	TidalPeak     int
	TidalEnd      int

	DicroticNotch      int
	DicroticPeak       int
	DicroticInflection int
	DicroticFallVelMin int
}

// Systolic returns the upstroke landmarks in expected temporal order.
func (l Landmarks) Systolic() []int {
	return []int{l.UpstrokeAccelMax, l.UpstrokeVel, l.UpstrokeAccelMin, l.SystolicPeak}
}

// Tidal returns the tidal-wave landmarks in expected temporal order.
func (l Landmarks) Tidal() []int {
	return []int{l.TidalPeak, l.TidalEnd}
}

// Dicrotic returns the dicrotic landmarks in expected temporal order.
func (l Landmarks) Dicrotic() []int {
	return []int{l.DicroticNotch, l.DicroticInflection, l.DicroticPeak, l.DicroticFallVelMin}
}

// Validate checks the strict ordering between landmarks and returns the
// first violated group, or ReasonNone.
func (l Landmarks) Validate() Reason {
	switch {
	case !increasing(l.Systolic()...):
		return BadSystolicSequence
	case !increasing(l.Tidal()...):
		return BadTidalSequence
	case !increasing(l.Dicrotic()...):
		return BadDicroticSequence
	case !increasing(l.SystolicPeak, l.TidalEnd, l.DicroticNotch-2):
		return BadPeakSequence
	}
	return ReasonNone
}

// DicroticSkipped reports whether the dicrotic peak lands implausibly late:
// more than fraction of the beat after the upstroke acceleration maximum.
func (l Landmarks) DicroticSkipped(beatTime []float64, fraction float64) bool {
	n := len(beatTime)
	if n == 0 || l.DicroticPeak >= n || l.UpstrokeAccelMax >= n {
		return true
	}
	return beatTime[n-1]*fraction < beatTime[l.DicroticPeak]-beatTime[l.UpstrokeAccelMax]
}

func increasing(idx ...int) bool {
	for i := 1; i < len(idx); i++ {
		if idx[i-1] >= idx[i] {
			return false
		}
	}
	return true
}

// DetectLandmarks locates the systolic, tidal and dicrotic landmarks of a
// normalized beat and validates them. On failure the returned Landmarks
// hold whatever was found, for diagnostics, and the Reason is non-zero.
func DetectLandmarks(b *Beat, skipFraction float64) (Landmarks, Reason) {
	n := b.Len()
	half := n / 2
	beat, vel, acc, jerk := b.Normalized, b.Velocity, b.Acceleration, b.Jerk

	var l Landmarks
	l.SystolicPeak = dsp.FindNearbyMaximum(beat, 0, 4, n)
	l.UpstrokeVel = dsp.FindNearbyMaximum(vel, 0, 1, l.SystolicPeak)
	l.UpstrokeAccelMax = dsp.FindNearbyMaximum(acc, l.UpstrokeVel, -1, l.SystolicPeak)
	l.UpstrokeAccelMin = dsp.FindNearbyMinimum(acc, l.UpstrokeVel, 1, l.SystolicPeak)

	l.TidalBuffer = dsp.FindNearbyMinimum(jerk, l.SystolicPeak+1, 1, half)
	l.TidalStart = dsp.FindNearbyMaximum(jerk, l.TidalBuffer+2, 1, half)
	l.TidalStartAlt = dsp.FindNearbyMaximum(acc, l.SystolicPeak, 2, half)
	l.TidalPeak = dsp.FindNearbyMinimum(jerk, min(l.TidalStartAlt, l.TidalStart+1), 4, half)
	l.TidalEnd = dsp.FindNearbyMaximum(jerk, l.TidalPeak+1, 2, half)

	l.DicroticNotch = dsp.FindNearbyMinimum(beat, l.TidalEnd, 1, half)
	l.DicroticPeak = dsp.FindNearbyMaximum(beat, l.DicroticNotch, 1, half)
	l.DicroticInflection = dsp.FindNearbyMaximum(vel, l.DicroticNotch, 2, half)
	l.DicroticFallVelMin = dsp.FindNearbyMinimum(vel, l.DicroticInflection, 2, half)

	if r := l.Validate(); r != ReasonNone {
		return l, r
	}
	if l.DicroticSkipped(b.Time, skipFraction) {
		return l, DicroticLikelySkipped
	}
	return l, ReasonNone
}
