package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// DefaultActiveFeatures is the feature subset persisted per beat when the
// config does not name one.
var DefaultActiveFeatures = []string{
	"systolic_dicrotic_notch_amp_ratio",
	"systolic_upstroke_accel_min_vel",
	"systolic_upslope_area",
}

// TuningConfig represents the root configuration for pulse analysis tuning
// parameters. Every field is optional; the Get* accessors fall back to the
// built-in defaults so partial files are safe.
type TuningConfig struct {
	// Physiological bounds used to derive points-per-beat limits
	MinBPM *float64 `json:"min_bpm,omitempty"`
	MaxBPM *float64 `json:"max_bpm,omitempty"`

	// Beat filtering
	LowPassCutoffHz *float64 `json:"low_pass_cutoff_hz,omitempty"`
	LowPassOrder    *int     `json:"low_pass_order,omitempty"`
	AlreadyFiltered *bool    `json:"already_filtered,omitempty"`

	// Segmentation
	SegmentThresholdFraction *float64 `json:"segment_threshold_fraction,omitempty"`
	WarmupSeconds            *float64 `json:"warmup_seconds,omitempty"`
	MaxRelaxations           *int     `json:"max_relaxations,omitempty"`

	// Landmark culling
	DicroticSkipFraction *float64 `json:"dicrotic_skip_fraction,omitempty"`

	// Calibration: 0 fixes the amplitude at the end of the first batch
	CalibrationBeats *int `json:"calibration_beats,omitempty"`

	// Feature tables
	AverageWindowSeconds *float64 `json:"average_window_seconds,omitempty"`
	TrimProportion       *float64 `json:"trim_proportion,omitempty"`
	ActiveFeatures       []string `json:"active_features,omitempty"`
	RetainBeats          *bool    `json:"retain_beats,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults. It does not touch the filesystem.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		MinBPM:                   ptrFloat64(empty.GetMinBPM()),
		MaxBPM:                   ptrFloat64(empty.GetMaxBPM()),
		LowPassCutoffHz:          ptrFloat64(empty.GetLowPassCutoffHz()),
		LowPassOrder:             ptrInt(empty.GetLowPassOrder()),
		AlreadyFiltered:          ptrBool(empty.GetAlreadyFiltered()),
		SegmentThresholdFraction: ptrFloat64(empty.GetSegmentThresholdFraction()),
		WarmupSeconds:            ptrFloat64(empty.GetWarmupSeconds()),
		MaxRelaxations:           ptrInt(empty.GetMaxRelaxations()),
		DicroticSkipFraction:     ptrFloat64(empty.GetDicroticSkipFraction()),
		CalibrationBeats:         ptrInt(empty.GetCalibrationBeats()),
		AverageWindowSeconds:     ptrFloat64(empty.GetAverageWindowSeconds()),
		TrimProportion:           ptrFloat64(empty.GetTrimProportion()),
		ActiveFeatures:           empty.GetActiveFeatures(),
		RetainBeats:              ptrBool(empty.GetRetainBeats()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/<tool>/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/pulse/plotter/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	minBPM, maxBPM := c.GetMinBPM(), c.GetMaxBPM()
	if minBPM <= 0 {
		return fmt.Errorf("min_bpm must be positive, got %f", minBPM)
	}
	if maxBPM <= minBPM {
		return fmt.Errorf("max_bpm must be greater than min_bpm (%f), got %f", minBPM, maxBPM)
	}

	if c.LowPassCutoffHz != nil && *c.LowPassCutoffHz <= 0 {
		return fmt.Errorf("low_pass_cutoff_hz must be positive, got %f", *c.LowPassCutoffHz)
	}
	if c.LowPassOrder != nil && (*c.LowPassOrder < 1 || *c.LowPassOrder > 8) {
		return fmt.Errorf("low_pass_order must be in [1, 8], got %d", *c.LowPassOrder)
	}

	if c.SegmentThresholdFraction != nil {
		if *c.SegmentThresholdFraction <= 0 || *c.SegmentThresholdFraction >= 1 {
			return fmt.Errorf("segment_threshold_fraction must be in (0, 1), got %f", *c.SegmentThresholdFraction)
		}
	}
	if c.WarmupSeconds != nil && *c.WarmupSeconds < 0 {
		return fmt.Errorf("warmup_seconds must be non-negative, got %f", *c.WarmupSeconds)
	}
	if c.MaxRelaxations != nil && *c.MaxRelaxations < 1 {
		return fmt.Errorf("max_relaxations must be at least 1, got %d", *c.MaxRelaxations)
	}

	if c.DicroticSkipFraction != nil {
		if *c.DicroticSkipFraction <= 0 || *c.DicroticSkipFraction > 1 {
			return fmt.Errorf("dicrotic_skip_fraction must be in (0, 1], got %f", *c.DicroticSkipFraction)
		}
	}
	if c.CalibrationBeats != nil && *c.CalibrationBeats < 0 {
		return fmt.Errorf("calibration_beats must be non-negative, got %d", *c.CalibrationBeats)
	}

	if c.AverageWindowSeconds != nil && *c.AverageWindowSeconds <= 0 {
		return fmt.Errorf("average_window_seconds must be positive, got %f", *c.AverageWindowSeconds)
	}
	if c.TrimProportion != nil {
		if *c.TrimProportion < 0 || *c.TrimProportion >= 0.5 {
			return fmt.Errorf("trim_proportion must be in [0, 0.5), got %f", *c.TrimProportion)
		}
	}

	seen := make(map[string]bool, len(c.ActiveFeatures))
	for _, name := range c.ActiveFeatures {
		if name == "" {
			return fmt.Errorf("active_features contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("active_features lists %q twice", name)
		}
		seen[name] = true
	}

	return nil
}

// GetMinBPM returns the min_bpm value or the default.
func (c *TuningConfig) GetMinBPM() float64 {
	if c.MinBPM == nil {
		return 30
	}
	return *c.MinBPM
}

// GetMaxBPM returns the max_bpm value or the default.
func (c *TuningConfig) GetMaxBPM() float64 {
	if c.MaxBPM == nil {
		return 180
	}
	return *c.MaxBPM
}

// GetLowPassCutoffHz returns the low_pass_cutoff_hz value or the default.
func (c *TuningConfig) GetLowPassCutoffHz() float64 {
	if c.LowPassCutoffHz == nil {
		return 18
	}
	return *c.LowPassCutoffHz
}

// GetLowPassOrder returns the low_pass_order value or the default.
func (c *TuningConfig) GetLowPassOrder() int {
	if c.LowPassOrder == nil {
		return 3
	}
	return *c.LowPassOrder
}

// GetAlreadyFiltered returns the already_filtered value or the default.
func (c *TuningConfig) GetAlreadyFiltered() bool {
	if c.AlreadyFiltered == nil {
		return false
	}
	return *c.AlreadyFiltered
}

// GetSegmentThresholdFraction returns the segment_threshold_fraction value or the default.
func (c *TuningConfig) GetSegmentThresholdFraction() float64 {
	if c.SegmentThresholdFraction == nil {
		return 0.5
	}
	return *c.SegmentThresholdFraction
}

// GetWarmupSeconds returns the warmup_seconds value or the default.
func (c *TuningConfig) GetWarmupSeconds() float64 {
	if c.WarmupSeconds == nil {
		return 1.5
	}
	return *c.WarmupSeconds
}

// GetMaxRelaxations returns the max_relaxations value or the default.
func (c *TuningConfig) GetMaxRelaxations() int {
	if c.MaxRelaxations == nil {
		return 64
	}
	return *c.MaxRelaxations
}

// GetDicroticSkipFraction returns the dicrotic_skip_fraction value or the default.
func (c *TuningConfig) GetDicroticSkipFraction() float64 {
	if c.DicroticSkipFraction == nil {
		return 0.75
	}
	return *c.DicroticSkipFraction
}

// GetCalibrationBeats returns the calibration_beats value or the default.
func (c *TuningConfig) GetCalibrationBeats() int {
	if c.CalibrationBeats == nil {
		return 0 // fix at end of first batch
	}
	return *c.CalibrationBeats
}

// GetAverageWindowSeconds returns the average_window_seconds value or the default.
func (c *TuningConfig) GetAverageWindowSeconds() float64 {
	if c.AverageWindowSeconds == nil {
		return 60
	}
	return *c.AverageWindowSeconds
}

// GetTrimProportion returns the trim_proportion value or the default.
func (c *TuningConfig) GetTrimProportion() float64 {
	if c.TrimProportion == nil {
		return 0.3
	}
	return *c.TrimProportion
}

// GetActiveFeatures returns a copy of the active_features list or the default subset.
func (c *TuningConfig) GetActiveFeatures() []string {
	src := c.ActiveFeatures
	if len(src) == 0 {
		src = DefaultActiveFeatures
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// GetRetainBeats returns the retain_beats value or the default.
func (c *TuningConfig) GetRetainBeats() bool {
	if c.RetainBeats == nil {
		return false
	}
	return *c.RetainBeats
}
