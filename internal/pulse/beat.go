package pulse

import (
	"fmt"

	"github.com/banshee-data/pulse.report/internal/dsp"
)

// Beat is one cardiac cycle cut from a batch with its derived curves. All
// curves share the length of Time.
type Beat struct {
	// Start and End are inclusive sample indices into the batch.
	Start int
	End   int
	// EndTime is the session time of the closing trough.
	EndTime float64

	// Time is beat-local, starting at zero.
	Time []float64
	// Filtered holds the band-limited samples before baseline removal.
	Filtered []float64
	// Normalized is baseline-zeroed, and pressure-scaled once calibrated.
	Normalized   []float64
	Velocity     []float64
	Acceleration []float64
	Jerk         []float64

	// Diastolic is the first filtered sample.
	Diastolic float64

	Landmarks Landmarks
	Features  *BeatFeatures
}

// Len is the number of samples in the beat.
func (b *Beat) Len() int { return len(b.Time) }

// Duration is the beat-local time of the last sample.
func (b *Beat) Duration() float64 {
	if len(b.Time) == 0 {
		return 0
	}
	return b.Time[len(b.Time)-1]
}

// Normalizer turns a raw slice of a batch into a Beat: band-limit, smooth,
// differentiate and zero the baseline. One is built per batch since the
// filter design depends on the sampling rate.
type Normalizer struct {
	alreadyFiltered bool
	sos             dsp.SOS
}

// NewNormalizer designs the low-pass for the batch sampling rate. A cutoff
// at or above Nyquist disables the low-pass stage.
func NewNormalizer(cfg Config, samplingHz float64) (*Normalizer, error) {
	n := &Normalizer{alreadyFiltered: cfg.AlreadyFiltered}
	if cfg.AlreadyFiltered || cfg.LowPassCutoffHz >= samplingHz/2 {
		return n, nil
	}
	sos, err := dsp.ButterLowPass(cfg.LowPassOrder, cfg.LowPassCutoffHz, samplingHz)
	if err != nil {
		return nil, fmt.Errorf("design beat low-pass: %w", err)
	}
	n.sos = sos
	return n, nil
}

// Prepare cuts samples [start, end] out of the batch and derives its curves.
// Beat.EndTime is left for the caller, which knows the session offset.
func (n *Normalizer) Prepare(times, values []float64, start, end int) (Beat, error) {
	if start < 0 || end >= len(values) || end <= start {
		return Beat{}, fmt.Errorf("beat bounds [%d, %d] outside batch of %d samples", start, end, len(values))
	}
	raw := values[start : end+1]

	filtered := make([]float64, len(raw))
	copy(filtered, raw)
	if !n.alreadyFiltered {
		if len(n.sos) > 0 {
			filtered = n.sos.FiltFilt(filtered)
		}
		smoothed, err := dsp.SavitzkyGolay(filtered, dsp.OddWindow(len(filtered)/8), 2, 0)
		if err != nil {
			return Beat{}, fmt.Errorf("smooth beat: %w", err)
		}
		filtered = smoothed
	}

	beatTime := make([]float64, len(raw))
	for i := range beatTime {
		beatTime[i] = times[start+i] - times[start]
	}

	vel, err := dsp.SavitzkyGolay(filtered, 3, 2, 1)
	if err != nil {
		return Beat{}, fmt.Errorf("beat velocity: %w", err)
	}
	acc, err := dsp.SavitzkyGolay(filtered, 3, 2, 2)
	if err != nil {
		return Beat{}, fmt.Errorf("beat acceleration: %w", err)
	}
	jerk, err := dsp.SavitzkyGolay(acc, 3, 1, 1)
	if err != nil {
		return Beat{}, fmt.Errorf("beat jerk: %w", err)
	}

	normalized := make([]float64, len(filtered))
	copy(normalized, filtered)
	if !n.alreadyFiltered {
		normalized, err = dsp.RemoveBaseline(normalized)
		if err != nil {
			return Beat{}, fmt.Errorf("beat baseline: %w", err)
		}
	}

	return Beat{
		Start:        start,
		End:          end,
		Time:         beatTime,
		Filtered:     filtered,
		Normalized:   normalized,
		Velocity:     vel,
		Acceleration: acc,
		Jerk:         jerk,
		Diastolic:    filtered[0],
	}, nil
}
