package pulse

import (
	"math"

	"github.com/banshee-data/pulse.report/internal/dsp"
)

// Segmenter tracks systolic rises in a first-derivative stream. PeakStandard
// carries over between batches so later batches inherit the amplitude the
// earlier ones learned.
type Segmenter struct {
	ThresholdFraction float64
	WarmupSeconds     float64

	// PeakStandard is the derivative of the most recent accepted rise.
	PeakStandard float64
	// PeakStandardIndex is the sample of that rise within the current pass.
	PeakStandardIndex int
}

// SamplingRate estimates samples per second as n/(t[n-1]-t[0]).
func SamplingRate(times []float64) float64 {
	n := len(times)
	if n < 2 {
		return 0
	}
	return float64(n) / (times[n-1] - times[0])
}

// PointsPerBeat converts a BPM range to sample-count limits for one beat.
func PointsPerBeat(samplingHz, minBPM, maxBPM float64) (minPoints, maxPoints int) {
	minPoints = int(math.Floor(samplingHz * 60 / maxBPM))
	maxPoints = int(math.Ceil(samplingHz * 60 / minBPM))
	return minPoints, maxPoints
}

// Separate runs one pass over firstDer and returns the indices of systolic
// rise candidates. A sample above ThresholdFraction*PeakStandard either opens
// a new candidate (when more than minPoints past the last one), replaces the
// last candidate when steeper, or is ignored. Until warm-up has passed, or
// while i <= minPoints, samples only raise the standard.
func (s *Segmenter) Separate(times, firstDer []float64, minPoints int, warm bool) []int {
	return s.separate(times, firstDer, minPoints, warm, math.Inf(1))
}

// separate is Separate with warm-up raises of the standard capped at
// ceiling.
func (s *Segmenter) separate(times, firstDer []float64, minPoints int, warm bool, ceiling float64) []int {
	s.PeakStandardIndex = 0
	var candidates []int
	for i, d := range firstDer {
		if d <= s.PeakStandard*s.ThresholdFraction {
			continue
		}
		warmedUp := warm || times[i]-times[0] > s.WarmupSeconds
		if !warmedUp || i <= minPoints {
			s.PeakStandard = math.Min(math.Max(s.PeakStandard, d), ceiling)
			continue
		}
		switch {
		case s.PeakStandardIndex+minPoints < i:
			candidates = append(candidates, i)
		case len(candidates) > 0 && firstDer[candidates[len(candidates)-1]] < d:
			candidates[len(candidates)-1] = i
		default:
			continue
		}
		s.PeakStandardIndex = i
		s.PeakStandard = d
	}
	return candidates
}

// SeparateRelaxed repeats Separate, halving PeakStandard between passes,
// until at least one candidate is found or maxRelaxations halvings have been
// spent. It returns the candidates and the number of halvings used. On
// relaxed passes warm-up samples cannot lift the standard back above the
// halved value, so an artefact early in the batch cannot undo the halving.
func (s *Segmenter) SeparateRelaxed(times, firstDer []float64, minPoints int, warm bool, maxRelaxations int) ([]int, int) {
	candidates := s.Separate(times, firstDer, minPoints, warm)
	relaxations := 0
	for len(candidates) == 0 && relaxations < maxRelaxations {
		s.PeakStandard /= 2
		relaxations++
		candidates = s.separate(times, firstDer, minPoints, warm, s.PeakStandard)
	}
	return candidates, relaxations
}

// Boundaries moves every candidate back to the trough before its rise.
// Beat n spans boundaries[n-1] to boundaries[n].
func Boundaries(signal []float64, candidates []int, maxPoints int) []int {
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = dsp.FindNearbyMinimum(signal, c, -1, maxPoints)
	}
	return out
}
