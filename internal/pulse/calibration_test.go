package pulse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibration_Lifecycle(t *testing.T) {
	t.Parallel()
	var c Calibration
	assert.Equal(t, CalibrationUnset, c.State())

	c.SetReferences(120, 80)
	assert.Equal(t, CalibrationCollecting, c.State())
	assert.True(t, c.HasReferences())

	assert.Equal(t, 1, c.Collect(2))
	assert.Equal(t, 2, c.Collect(4))
	require.True(t, c.FixAmplitude())
	assert.Equal(t, CalibrationFixed, c.State())
	assert.Equal(t, 3.0, c.Amplitude)

	// fixed calibrations ignore further beats
	assert.Equal(t, 2, c.Collect(100))
	assert.Equal(t, 3.0, c.Amplitude)
}

func TestCalibration_FixAmplitudeRefusesUnusableMeans(t *testing.T) {
	t.Parallel()
	var c Calibration
	c.SetReferences(120, 80)
	assert.False(t, c.FixAmplitude(), "nothing collected")

	c.Collect(-1)
	assert.False(t, c.FixAmplitude(), "non-positive mean")
	assert.Equal(t, CalibrationCollecting, c.State())
}

func TestCalibration_CollectSkipsNonFinite(t *testing.T) {
	t.Parallel()
	var c Calibration
	c.Collect(math.NaN())
	c.Collect(math.Inf(1))
	c.Collect(1.5)
	assert.Equal(t, []float64{1.5}, c.Collected())
}

func TestCalibration_SetAmplitude(t *testing.T) {
	t.Parallel()
	var c Calibration
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Error(t, c.SetAmplitude(bad), "amplitude %v", bad)
	}
	require.NoError(t, c.SetAmplitude(2))
	assert.True(t, c.Fixed())
}

func TestCalibration_CalibrateDoesNotCompound(t *testing.T) {
	t.Parallel()
	var c Calibration
	c.SetReferences(120, 80)
	require.NoError(t, c.SetAmplitude(2))
	assert.Equal(t, 20.0, c.Scale())

	beat := []float64{0, 1, 2}
	first := c.Calibrate(beat)
	second := c.Calibrate(beat)
	assert.Equal(t, []float64{0, 20, 40}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, []float64{0, 1, 2}, beat)
}

func TestCalibration_ScaleBeforeFixIsNaN(t *testing.T) {
	t.Parallel()
	var c Calibration
	c.SetReferences(120, 80)
	assert.True(t, math.IsNaN(c.Scale()))
}

func TestCalibration_Reset(t *testing.T) {
	t.Parallel()
	var c Calibration
	c.SetReferences(120, 80)
	c.Collect(1)
	c.FixAmplitude()
	c.Reset()
	assert.Equal(t, CalibrationUnset, c.State())
	assert.Empty(t, c.Collected())
}

func TestCalibrationState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "unset", CalibrationUnset.String())
	assert.Equal(t, "collecting", CalibrationCollecting.String())
	assert.Equal(t, "fixed", CalibrationFixed.String())
	assert.Equal(t, "calibration(7)", CalibrationState(7).String())
}
