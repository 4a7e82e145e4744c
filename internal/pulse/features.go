package pulse

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pulse.report/internal/dsp"
)

// LandmarkSample is the beat state at one landmark.
type LandmarkSample struct {
	Time  float64 // Beat-local seconds
	Amp   float64 // Normalized (calibrated) amplitude
	Vel   float64 // First derivative per sample
	Accel float64 // Second derivative per sample
}

// LandmarkFeatures samples the beat at each validated landmark.
type LandmarkFeatures struct {
	SystolicUpstrokeAccelMax LandmarkSample
	SystolicUpstrokeVel      LandmarkSample
	SystolicUpstrokeAccelMin LandmarkSample
	SystolicPeak             LandmarkSample

	TidalPeak LandmarkSample
	TidalEnd  LandmarkSample

	DicroticNotch      LandmarkSample
	DicroticRiseVelMax LandmarkSample
	DicroticPeak       LandmarkSample
	DicroticFallVelMin LandmarkSample
}

// TimeFeatures are intervals in seconds.
type TimeFeatures struct {
	PulseDuration              float64
	SystolicTime               float64 // Start to dicrotic notch
	DiastolicTime              float64 // Dicrotic notch to end
	LeftVentricularPerformance float64 // Systolic / diastolic time

	MaxDerivToSystolic      float64
	SystolicToTidal         float64
	SystolicToDicroticNotch float64
	DicroticNotchToTidal    float64
	DicroticNotchToDicrotic float64

	SystolicUpSlopeTime            float64
	MidToEndTidal                  float64
	TidalToDicroticVelPeakInterval float64
}

// AreaFeatures are integrals over the normalized beat.
type AreaFeatures struct {
	PulseArea         float64
	PulseAreaSquared  float64
	LeftVentricleLoad float64 // Area up to the dicrotic notch
	DiastolicArea     float64
	SystolicUpSlope   float64 // Upstroke acceleration max to min
	VelToTidal        float64 // Upstroke velocity peak to tidal peak
	PulseAverage      float64
}

// RatioFeatures compare landmarks against each other.
type RatioFeatures struct {
	Area float64 // Left ventricle load / diastolic area

	SystolicDicroticNotchAmp   float64
	SystolicDicroticNotchVel   float64
	SystolicDicroticNotchAccel float64

	SystolicTidalAmp         float64
	DicroticNotchTidalAmp    float64
	DicroticNotchDicroticAmp float64

	SystolicTidalVel         float64
	SystolicDicroticVel      float64
	DicroticNotchTidalVel    float64
	DicroticNotchDicroticVel float64

	SystolicTidalAccel         float64
	SystolicDicroticAccel      float64
	DicroticNotchTidalAccel    float64
	DicroticNotchDicroticAccel float64
}

// SlopeFeatures are least-squares slopes over beat phases.
type SlopeFeatures struct {
	SystolicUp float64
	Tidal      float64
	DicroticUp float64
	End        float64
}

// BiologicalFeatures are physiological proxies on the calibrated scale.
type BiologicalFeatures struct {
	DiastolicPressure float64
	SystolicPressure  float64
	PressureRatio     float64
	MomentumDensity   float64

	MeanArterialPressure             float64
	PseudoCardiacOutput              float64
	PseudoSystemicVascularResistance float64
	PseudoStrokeVolume               float64

	MaxSystolicVelocity         float64
	ValveCrossSectionalArea     float64
	VelocityTimeIntegral        float64
	VelocityTimeIntegralAbs     float64
	VelocityTimeIntegralAlt     float64
	CentralAugmentationIndex    float64
	CentralAugmentationIndexEst float64
	ReflectionIndex             float64
	StiffnessIndex              float64
}

// BeatFeatures is the full feature vector of one accepted beat.
type BeatFeatures struct {
	// Time is the session time of the beat's closing trough.
	Time float64

	Landmarks LandmarkFeatures
	Timing    TimeFeatures
	Area      AreaFeatures
	Ratio     RatioFeatures
	Slope     SlopeFeatures
	Bio       BiologicalFeatures
}

// ComputeFeatures derives every feature of a beat from its validated
// landmarks. b.Normalized must already be calibrated.
func ComputeFeatures(b *Beat, lm Landmarks) BeatFeatures {
	t, y, vel, acc := b.Time, b.Normalized, b.Velocity, b.Acceleration
	at := func(i int) LandmarkSample {
		return LandmarkSample{Time: t[i], Amp: y[i], Vel: vel[i], Accel: acc[i]}
	}

	f := BeatFeatures{Time: b.EndTime}
	lf := &f.Landmarks
	lf.SystolicUpstrokeAccelMax = at(lm.UpstrokeAccelMax)
	lf.SystolicUpstrokeVel = at(lm.UpstrokeVel)
	lf.SystolicUpstrokeAccelMin = at(lm.UpstrokeAccelMin)
	lf.SystolicPeak = at(lm.SystolicPeak)
	lf.TidalPeak = at(lm.TidalPeak)
	lf.TidalEnd = at(lm.TidalEnd)
	lf.DicroticNotch = at(lm.DicroticNotch)
	lf.DicroticRiseVelMax = at(lm.DicroticInflection)
	lf.DicroticPeak = at(lm.DicroticPeak)
	lf.DicroticFallVelMin = at(lm.DicroticFallVelMin)

	sys, tidal, notch, dic := lf.SystolicPeak, lf.TidalPeak, lf.DicroticNotch, lf.DicroticPeak

	tf := &f.Timing
	tf.PulseDuration = b.Duration()
	tf.SystolicTime = notch.Time
	tf.DiastolicTime = tf.PulseDuration - tf.SystolicTime
	tf.LeftVentricularPerformance = tf.SystolicTime / tf.DiastolicTime
	tf.MaxDerivToSystolic = sys.Time - lf.SystolicUpstrokeVel.Time
	tf.SystolicToTidal = tidal.Time - sys.Time
	tf.SystolicToDicroticNotch = notch.Time - sys.Time
	tf.DicroticNotchToTidal = tidal.Time - notch.Time
	tf.DicroticNotchToDicrotic = dic.Time - notch.Time
	tf.SystolicUpSlopeTime = lf.SystolicUpstrokeAccelMin.Time - lf.SystolicUpstrokeAccelMax.Time
	tf.MidToEndTidal = lf.TidalEnd.Time - tidal.Time
	tf.TidalToDicroticVelPeakInterval = lf.DicroticRiseVelMax.Time - tidal.Time

	af := &f.Area
	squared := make([]float64, len(y))
	for i, v := range y {
		squared[i] = v * v
	}
	af.PulseArea = dsp.Integrate(t, y)
	af.PulseAreaSquared = dsp.Integrate(t, squared)
	af.LeftVentricleLoad = integrateSpan(t, y, 0, lm.DicroticNotch)
	af.DiastolicArea = af.PulseArea - af.LeftVentricleLoad
	af.SystolicUpSlope = integrateSpan(t, y, lm.UpstrokeAccelMax, lm.UpstrokeAccelMin)
	af.VelToTidal = integrateSpan(t, y, lm.UpstrokeVel, lm.TidalPeak)
	af.PulseAverage = stat.Mean(y, nil)

	rf := &f.Ratio
	rf.Area = af.LeftVentricleLoad / af.DiastolicArea
	rf.SystolicDicroticNotchAmp = notch.Amp / sys.Amp
	rf.SystolicDicroticNotchVel = notch.Vel / sys.Vel
	rf.SystolicDicroticNotchAccel = notch.Accel / sys.Accel
	rf.SystolicTidalAmp = tidal.Amp / sys.Amp
	rf.DicroticNotchTidalAmp = tidal.Amp / notch.Amp
	rf.DicroticNotchDicroticAmp = dic.Amp / notch.Amp
	rf.SystolicTidalVel = tidal.Vel / sys.Vel
	rf.SystolicDicroticVel = dic.Vel / sys.Vel
	rf.DicroticNotchTidalVel = tidal.Vel / notch.Vel
	rf.DicroticNotchDicroticVel = dic.Vel / notch.Vel
	rf.SystolicTidalAccel = tidal.Accel / sys.Accel
	rf.SystolicDicroticAccel = dic.Accel / sys.Accel
	rf.DicroticNotchTidalAccel = tidal.Accel / notch.Accel
	rf.DicroticNotchDicroticAccel = dic.Accel / notch.Accel

	sf := &f.Slope
	sf.SystolicUp = slope(t, y, lm.UpstrokeAccelMax, lm.UpstrokeAccelMin)
	sf.Tidal = slope(t, y, lm.TidalPeak, lm.TidalEnd)
	sf.DicroticUp = slope(t, y, lm.DicroticNotch, lm.DicroticPeak)
	sf.End = slope(t, y, lm.DicroticFallVelMin, len(y))

	bio := &f.Bio
	duration := tf.PulseDuration
	bio.DiastolicPressure = b.Diastolic
	bio.SystolicPressure = b.Diastolic + sys.Amp
	bio.PressureRatio = bio.SystolicPressure / bio.DiastolicPressure
	bio.MomentumDensity = 2 * duration * af.PulseArea
	bio.MeanArterialPressure = b.Diastolic + sys.Amp/3
	bio.PseudoCardiacOutput = af.PulseArea / duration
	bio.PseudoSystemicVascularResistance = bio.MeanArterialPressure / duration
	bio.PseudoStrokeVolume = bio.PseudoCardiacOutput / duration
	bio.MaxSystolicVelocity = floats.Max(vel)
	bio.ValveCrossSectionalArea = bio.PseudoCardiacOutput / bio.MaxSystolicVelocity
	bio.VelocityTimeIntegral = dsp.Integrate(t, vel)
	bio.VelocityTimeIntegralAbs = dsp.IntegrateAbs(t, vel)
	bio.VelocityTimeIntegralAlt = bio.PseudoStrokeVolume / bio.ValveCrossSectionalArea
	bio.CentralAugmentationIndex = y[floats.MaxIdx(vel)] / sys.Amp
	bio.CentralAugmentationIndexEst = tidal.Amp / sys.Amp
	bio.ReflectionIndex = dic.Amp / sys.Amp
	bio.StiffnessIndex = 1 / (dic.Time - sys.Time)

	return f
}

// integrateSpan integrates y over the inclusive index range [from, to].
func integrateSpan(t, y []float64, from, to int) float64 {
	if from < 0 || to >= len(y) || to <= from {
		return 0
	}
	return dsp.Integrate(t[from:to+1], y[from:to+1])
}

// slope fits a line to y over [from, to) and returns its gradient.
func slope(t, y []float64, from, to int) float64 {
	if from < 0 || to > len(y) || to-from < 2 {
		return math.NaN()
	}
	_, beta := stat.LinearRegression(t[from:to], y[from:to], nil, false)
	return beta
}

type featureDef struct {
	name string
	get  func(*BeatFeatures) float64
}

var (
	featureDefs  = buildFeatureDefs()
	featureIndex = indexFeatureDefs(featureDefs)
)

func buildFeatureDefs() []featureDef {
	landmarks := []struct {
		prefix string
		get    func(*LandmarkFeatures) *LandmarkSample
	}{
		{"systolic_upstroke_accel_max", func(l *LandmarkFeatures) *LandmarkSample { return &l.SystolicUpstrokeAccelMax }},
		{"systolic_upstroke_vel", func(l *LandmarkFeatures) *LandmarkSample { return &l.SystolicUpstrokeVel }},
		{"systolic_upstroke_accel_min", func(l *LandmarkFeatures) *LandmarkSample { return &l.SystolicUpstrokeAccelMin }},
		{"systolic_peak", func(l *LandmarkFeatures) *LandmarkSample { return &l.SystolicPeak }},
		{"tidal_peak", func(l *LandmarkFeatures) *LandmarkSample { return &l.TidalPeak }},
		{"tidal_end", func(l *LandmarkFeatures) *LandmarkSample { return &l.TidalEnd }},
		{"dicrotic_notch", func(l *LandmarkFeatures) *LandmarkSample { return &l.DicroticNotch }},
		{"dicrotic_rise_vel_max", func(l *LandmarkFeatures) *LandmarkSample { return &l.DicroticRiseVelMax }},
		{"dicrotic_peak", func(l *LandmarkFeatures) *LandmarkSample { return &l.DicroticPeak }},
		{"dicrotic_fall_vel_min", func(l *LandmarkFeatures) *LandmarkSample { return &l.DicroticFallVelMin }},
	}
	quantities := []struct {
		suffix string
		get    func(*LandmarkSample) float64
	}{
		{"_time", func(s *LandmarkSample) float64 { return s.Time }},
		{"_amp", func(s *LandmarkSample) float64 { return s.Amp }},
		{"_vel", func(s *LandmarkSample) float64 { return s.Vel }},
		{"_accel", func(s *LandmarkSample) float64 { return s.Accel }},
	}

	var defs []featureDef
	for _, q := range quantities {
		for _, lm := range landmarks {
			lm, q := lm, q
			defs = append(defs, featureDef{
				name: lm.prefix + q.suffix,
				get:  func(f *BeatFeatures) float64 { return q.get(lm.get(&f.Landmarks)) },
			})
		}
	}

	add := func(name string, get func(*BeatFeatures) float64) {
		defs = append(defs, featureDef{name: name, get: get})
	}

	add("pulse_duration", func(f *BeatFeatures) float64 { return f.Timing.PulseDuration })
	add("systolic_time", func(f *BeatFeatures) float64 { return f.Timing.SystolicTime })
	add("diastolic_time", func(f *BeatFeatures) float64 { return f.Timing.DiastolicTime })
	add("left_ventricular_performance", func(f *BeatFeatures) float64 { return f.Timing.LeftVentricularPerformance })
	add("max_deriv_to_systolic", func(f *BeatFeatures) float64 { return f.Timing.MaxDerivToSystolic })
	add("systolic_to_tidal", func(f *BeatFeatures) float64 { return f.Timing.SystolicToTidal })
	add("systolic_to_dicrotic_notch", func(f *BeatFeatures) float64 { return f.Timing.SystolicToDicroticNotch })
	add("dicrotic_notch_to_tidal", func(f *BeatFeatures) float64 { return f.Timing.DicroticNotchToTidal })
	add("dicrotic_notch_to_dicrotic", func(f *BeatFeatures) float64 { return f.Timing.DicroticNotchToDicrotic })
	add("systolic_upslope_time", func(f *BeatFeatures) float64 { return f.Timing.SystolicUpSlopeTime })
	add("mid_to_end_tidal", func(f *BeatFeatures) float64 { return f.Timing.MidToEndTidal })
	add("tidal_to_dicrotic_vel_peak_interval", func(f *BeatFeatures) float64 { return f.Timing.TidalToDicroticVelPeakInterval })

	add("pulse_area", func(f *BeatFeatures) float64 { return f.Area.PulseArea })
	add("pulse_area_squared", func(f *BeatFeatures) float64 { return f.Area.PulseAreaSquared })
	add("left_ventricle_load", func(f *BeatFeatures) float64 { return f.Area.LeftVentricleLoad })
	add("diastolic_area", func(f *BeatFeatures) float64 { return f.Area.DiastolicArea })
	add("systolic_upslope_area", func(f *BeatFeatures) float64 { return f.Area.SystolicUpSlope })
	add("vel_to_tidal_area", func(f *BeatFeatures) float64 { return f.Area.VelToTidal })
	add("pulse_average", func(f *BeatFeatures) float64 { return f.Area.PulseAverage })

	add("area_ratio", func(f *BeatFeatures) float64 { return f.Ratio.Area })
	add("systolic_dicrotic_notch_amp_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicDicroticNotchAmp })
	add("systolic_dicrotic_notch_vel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicDicroticNotchVel })
	add("systolic_dicrotic_notch_accel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicDicroticNotchAccel })
	add("systolic_tidal_amp_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicTidalAmp })
	add("dicrotic_notch_tidal_amp_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchTidalAmp })
	add("dicrotic_notch_dicrotic_amp_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchDicroticAmp })
	add("systolic_tidal_vel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicTidalVel })
	add("systolic_dicrotic_vel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicDicroticVel })
	add("dicrotic_notch_tidal_vel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchTidalVel })
	add("dicrotic_notch_dicrotic_vel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchDicroticVel })
	add("systolic_tidal_accel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicTidalAccel })
	add("systolic_dicrotic_accel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.SystolicDicroticAccel })
	add("dicrotic_notch_tidal_accel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchTidalAccel })
	add("dicrotic_notch_dicrotic_accel_ratio", func(f *BeatFeatures) float64 { return f.Ratio.DicroticNotchDicroticAccel })

	add("systolic_slope_up", func(f *BeatFeatures) float64 { return f.Slope.SystolicUp })
	add("tidal_slope", func(f *BeatFeatures) float64 { return f.Slope.Tidal })
	add("dicrotic_slope_up", func(f *BeatFeatures) float64 { return f.Slope.DicroticUp })
	add("end_slope", func(f *BeatFeatures) float64 { return f.Slope.End })

	add("diastolic_pressure", func(f *BeatFeatures) float64 { return f.Bio.DiastolicPressure })
	add("systolic_pressure", func(f *BeatFeatures) float64 { return f.Bio.SystolicPressure })
	add("pressure_ratio", func(f *BeatFeatures) float64 { return f.Bio.PressureRatio })
	add("momentum_density", func(f *BeatFeatures) float64 { return f.Bio.MomentumDensity })
	add("mean_arterial_pressure", func(f *BeatFeatures) float64 { return f.Bio.MeanArterialPressure })
	add("pseudo_cardiac_output", func(f *BeatFeatures) float64 { return f.Bio.PseudoCardiacOutput })
	add("pseudo_systemic_vascular_resistance", func(f *BeatFeatures) float64 { return f.Bio.PseudoSystemicVascularResistance })
	add("pseudo_stroke_volume", func(f *BeatFeatures) float64 { return f.Bio.PseudoStrokeVolume })
	add("max_systolic_velocity", func(f *BeatFeatures) float64 { return f.Bio.MaxSystolicVelocity })
	add("valve_cross_sectional_area", func(f *BeatFeatures) float64 { return f.Bio.ValveCrossSectionalArea })
	add("velocity_time_integral", func(f *BeatFeatures) float64 { return f.Bio.VelocityTimeIntegral })
	add("velocity_time_integral_abs", func(f *BeatFeatures) float64 { return f.Bio.VelocityTimeIntegralAbs })
	add("velocity_time_integral_alt", func(f *BeatFeatures) float64 { return f.Bio.VelocityTimeIntegralAlt })
	add("central_augmentation_index", func(f *BeatFeatures) float64 { return f.Bio.CentralAugmentationIndex })
	add("central_augmentation_index_est", func(f *BeatFeatures) float64 { return f.Bio.CentralAugmentationIndexEst })
	add("reflection_index", func(f *BeatFeatures) float64 { return f.Bio.ReflectionIndex })
	add("stiffness_index", func(f *BeatFeatures) float64 { return f.Bio.StiffnessIndex })

	return defs
}

func indexFeatureDefs(defs []featureDef) map[string]int {
	idx := make(map[string]int, len(defs))
	for i, d := range defs {
		idx[d.name] = i
	}
	return idx
}

// FeatureNames lists every feature in catalogue order.
func FeatureNames() []string {
	names := make([]string, len(featureDefs))
	for i, d := range featureDefs {
		names[i] = d.name
	}
	return names
}

// SortedFeatureNames lists every feature alphabetically.
func SortedFeatureNames() []string {
	names := FeatureNames()
	sort.Strings(names)
	return names
}

// IsFeature reports whether name is in the catalogue.
func IsFeature(name string) bool {
	_, ok := featureIndex[name]
	return ok
}

// Value looks up one feature by name.
func (f *BeatFeatures) Value(name string) (float64, bool) {
	i, ok := featureIndex[name]
	if !ok {
		return math.NaN(), false
	}
	return featureDefs[i].get(f), true
}

// Values returns the named features in order; unknown names yield NaN.
func (f *BeatFeatures) Values(names []string) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		out[i], _ = f.Value(name)
	}
	return out
}

// All returns every feature keyed by name.
func (f *BeatFeatures) All() map[string]float64 {
	out := make(map[string]float64, len(featureDefs))
	for _, d := range featureDefs {
		out[d.name] = d.get(f)
	}
	return out
}
