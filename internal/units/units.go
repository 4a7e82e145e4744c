// Package units provides the SI prefixes a recorded signal may be stored in
// and the factors that bring it back to base units.
package units

import (
	"fmt"
	"strings"
)

// Prefix constants. Base is the empty prefix.
const (
	Base  = ""
	Milli = "milli"
	Micro = "micro"
	Nano  = "nano"
	Pico  = "pico"
	Femto = "femto"
)

// ValidUnits contains all valid prefixes, largest first.
var ValidUnits = []string{Base, Milli, Micro, Nano, Pico, Femto}

var scaleFactors = map[string]float64{
	Base:  1,
	Milli: 1e-3,
	Micro: 1e-6,
	Nano:  1e-9,
	Pico:  1e-12,
	Femto: 1e-15,
}

// canonical folds case and the legacy "fempto" spelling found in older
// recording configs.
func canonical(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "fempto" {
		return Femto
	}
	return u
}

// IsValid checks if the given prefix is known.
func IsValid(unit string) bool {
	_, ok := scaleFactors[canonical(unit)]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return `"" (base), milli, micro, nano, pico, femto`
}

// ScaleFactor returns the multiplier that converts samples stored with the
// given prefix into base units.
func ScaleFactor(unit string) (float64, error) {
	f, ok := scaleFactors[canonical(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit prefix %q, want one of %s", unit, GetValidUnitsString())
	}
	return f, nil
}

// Scale multiplies values in place by factor. A factor of 1 is a no-op.
func Scale(values []float64, factor float64) {
	if factor == 1 {
		return
	}
	for i := range values {
		values[i] *= factor
	}
}
