package pulse

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalibrationState is the lifecycle of the amplitude calibration.
type CalibrationState int

const (
	// CalibrationUnset: no pressure references yet.
	CalibrationUnset CalibrationState = iota
	// CalibrationCollecting: references known, beat amplitudes being gathered.
	CalibrationCollecting
	// CalibrationFixed: amplitude fixed, beats are rescaled to pressure.
	CalibrationFixed
)

func (s CalibrationState) String() string {
	switch s {
	case CalibrationUnset:
		return "unset"
	case CalibrationCollecting:
		return "collecting"
	case CalibrationFixed:
		return "fixed"
	}
	return fmt.Sprintf("calibration(%d)", int(s))
}

// Calibration maps baseline-zeroed beats onto the pressure scale given by a
// systolic/diastolic reference pair. The reference amplitude is the mean
// peak of the first beats seen.
type Calibration struct {
	Systolic0  float64
	Diastolic0 float64
	Amplitude  float64

	hasReferences bool
	fixed         bool
	peaks         []float64
}

// State reports where the calibration is in its lifecycle.
func (c *Calibration) State() CalibrationState {
	switch {
	case c.fixed:
		return CalibrationFixed
	case c.hasReferences:
		return CalibrationCollecting
	}
	return CalibrationUnset
}

// HasReferences reports whether Systolic0 and Diastolic0 are set.
func (c *Calibration) HasReferences() bool { return c.hasReferences }

// Fixed reports whether the amplitude is fixed.
func (c *Calibration) Fixed() bool { return c.fixed }

// SetReferences records the pressure pair. Later calls overwrite it.
func (c *Calibration) SetReferences(systolic, diastolic float64) {
	c.Systolic0 = systolic
	c.Diastolic0 = diastolic
	c.hasReferences = true
}

// Collect adds one beat's peak normalized amplitude and returns the number
// collected so far. Ignored once fixed.
func (c *Calibration) Collect(peak float64) int {
	if c.fixed {
		return len(c.peaks)
	}
	if !math.IsNaN(peak) && !math.IsInf(peak, 0) {
		c.peaks = append(c.peaks, peak)
	}
	return len(c.peaks)
}

// Collected returns a copy of the gathered peak amplitudes.
func (c *Calibration) Collected() []float64 {
	out := make([]float64, len(c.peaks))
	copy(out, c.peaks)
	return out
}

// FixAmplitude fixes the amplitude to the mean of the collected peaks. It
// reports false, leaving the calibration collecting, when there is nothing
// usable to average.
func (c *Calibration) FixAmplitude() bool {
	if c.fixed {
		return true
	}
	if len(c.peaks) == 0 {
		return false
	}
	mean := stat.Mean(c.peaks, nil)
	if mean <= 0 || math.IsNaN(mean) {
		return false
	}
	c.Amplitude = mean
	c.fixed = true
	return true
}

// SetAmplitude fixes the amplitude directly.
func (c *Calibration) SetAmplitude(amplitude float64) error {
	if amplitude <= 0 || math.IsNaN(amplitude) || math.IsInf(amplitude, 0) {
		return fmt.Errorf("calibrated amplitude must be positive and finite, got %g", amplitude)
	}
	c.Amplitude = amplitude
	c.fixed = true
	return nil
}

// Scale is the factor applied by Calibrate.
func (c *Calibration) Scale() float64 {
	if !c.fixed {
		return math.NaN()
	}
	return (c.Systolic0 - c.Diastolic0) / c.Amplitude
}

// Calibrate returns beat rescaled to the pressure references. The input is
// not modified, so repeated calls on the same beat give the same result.
func (c *Calibration) Calibrate(beat []float64) []float64 {
	scale := c.Scale()
	out := make([]float64, len(beat))
	for i, v := range beat {
		out[i] = v * scale
	}
	return out
}

// Reset clears all calibration state.
func (c *Calibration) Reset() {
	*c = Calibration{}
}
