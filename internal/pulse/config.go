package pulse

import (
	"fmt"

	"github.com/banshee-data/pulse.report/internal/config"
)

// Config holds the resolved tuning for a Session. Build one with
// DefaultConfig or ConfigFromTuning and adjust fields before NewSession.
type Config struct {
	// MinBPM and MaxBPM bound the plausible heart rate; they set the
	// points-per-beat limits for Process. ProcessBatch takes its own.
	MinBPM float64
	MaxBPM float64

	LowPassCutoffHz float64
	LowPassOrder    int
	// AlreadyFiltered skips low-pass, smoothing and baseline removal.
	AlreadyFiltered bool

	// ThresholdFraction of the running peak derivative a sample must
	// exceed to count as a systolic rise.
	ThresholdFraction float64
	WarmupSeconds     float64
	MaxRelaxations    int

	// DicroticSkipFraction of beat duration beyond which a late dicrotic
	// peak is treated as a missed one.
	DicroticSkipFraction float64

	// CalibrationBeats fixes the amplitude once this many peaks have been
	// collected. Zero fixes it at the end of the first batch.
	CalibrationBeats int

	AverageWindowSeconds float64
	TrimProportion       float64
	ActiveFeatures       []string

	// RetainBeats keeps every accepted Beat (curves and landmarks) in
	// memory for plotting.
	RetainBeats bool

	// DiagnosticSink, when set, receives every diagnostic as it is raised.
	DiagnosticSink func(Diagnostic)
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning resolves a TuningConfig, applying defaults for any field
// it leaves unset.
func ConfigFromTuning(t *config.TuningConfig) Config {
	if t == nil {
		t = config.EmptyTuningConfig()
	}
	return Config{
		MinBPM:               t.GetMinBPM(),
		MaxBPM:               t.GetMaxBPM(),
		LowPassCutoffHz:      t.GetLowPassCutoffHz(),
		LowPassOrder:         t.GetLowPassOrder(),
		AlreadyFiltered:      t.GetAlreadyFiltered(),
		ThresholdFraction:    t.GetSegmentThresholdFraction(),
		WarmupSeconds:        t.GetWarmupSeconds(),
		MaxRelaxations:       t.GetMaxRelaxations(),
		DicroticSkipFraction: t.GetDicroticSkipFraction(),
		CalibrationBeats:     t.GetCalibrationBeats(),
		AverageWindowSeconds: t.GetAverageWindowSeconds(),
		TrimProportion:       t.GetTrimProportion(),
		ActiveFeatures:       t.GetActiveFeatures(),
		RetainBeats:          t.GetRetainBeats(),
	}
}

// Validate checks ranges and that every active feature name is known.
func (c Config) Validate() error {
	if c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM {
		return fmt.Errorf("%w: [%g, %g]", ErrBadBPMRange, c.MinBPM, c.MaxBPM)
	}
	if c.LowPassCutoffHz <= 0 {
		return fmt.Errorf("low-pass cutoff must be positive, got %g", c.LowPassCutoffHz)
	}
	if c.LowPassOrder < 1 {
		return fmt.Errorf("low-pass order must be at least 1, got %d", c.LowPassOrder)
	}
	if c.ThresholdFraction <= 0 || c.ThresholdFraction >= 1 {
		return fmt.Errorf("threshold fraction must be in (0, 1), got %g", c.ThresholdFraction)
	}
	if c.WarmupSeconds < 0 {
		return fmt.Errorf("warm-up must be non-negative, got %g", c.WarmupSeconds)
	}
	if c.MaxRelaxations < 1 {
		return fmt.Errorf("max relaxations must be at least 1, got %d", c.MaxRelaxations)
	}
	if c.DicroticSkipFraction <= 0 || c.DicroticSkipFraction > 1 {
		return fmt.Errorf("dicrotic skip fraction must be in (0, 1], got %g", c.DicroticSkipFraction)
	}
	if c.CalibrationBeats < 0 {
		return fmt.Errorf("calibration beats must be non-negative, got %d", c.CalibrationBeats)
	}
	if c.AverageWindowSeconds <= 0 {
		return fmt.Errorf("average window must be positive, got %g", c.AverageWindowSeconds)
	}
	if c.TrimProportion < 0 || c.TrimProportion >= 0.5 {
		return fmt.Errorf("trim proportion must be in [0, 0.5), got %g", c.TrimProportion)
	}
	if len(c.ActiveFeatures) == 0 {
		return fmt.Errorf("at least one active feature is required")
	}
	for _, name := range c.ActiveFeatures {
		if !IsFeature(name) {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	return nil
}
