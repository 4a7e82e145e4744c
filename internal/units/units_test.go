package units

import (
	"testing"
)

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		unit     string
		expected float64
	}{
		{"", 1},
		{Milli, 1e-3},
		{Micro, 1e-6},
		{Nano, 1e-9},
		{Pico, 1e-12},
		{Femto, 1e-15},
		{"fempto", 1e-15},
		{" Micro ", 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, err := ScaleFactor(tt.unit)
			if err != nil {
				t.Fatalf("ScaleFactor(%q) error = %v", tt.unit, err)
			}
			if got != tt.expected {
				t.Errorf("ScaleFactor(%q) = %g, want %g", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestScaleFactorUnknown(t *testing.T) {
	if _, err := ScaleFactor("kilo"); err == nil {
		t.Error("expected error for unknown prefix")
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"base", Base, true},
		{"pico", Pico, true},
		{"upper case", "NANO", true},
		{"legacy spelling", "fempto", true},
		{"invalid unit", "mega", false},
		{"abbreviation", "mV", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestValidUnitsAllHaveFactors(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("ValidUnits lists %q but IsValid rejects it", u)
		}
	}
}

func TestScale(t *testing.T) {
	values := []float64{1, 2, 3}
	Scale(values, 1e-3)
	want := []float64{1e-3, 2e-3, 3e-3}
	for i := range values {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %g, want %g", i, values[i], want[i])
		}
	}

	same := []float64{5}
	Scale(same, 1)
	if same[0] != 5 {
		t.Errorf("unit factor changed value to %g", same[0])
	}
}
