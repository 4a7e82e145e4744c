package pulse

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/pulse.report/internal/dsp"
)

// Input errors. Processing never starts when one of these is returned.
var (
	ErrEmptySignal          = errors.New("pulse: empty signal")
	ErrLengthMismatch       = errors.New("pulse: times and values differ in length")
	ErrNonIncreasingTime    = errors.New("pulse: time is not strictly increasing")
	ErrNonFiniteSample      = errors.New("pulse: non-finite sample")
	ErrBadBPMRange          = errors.New("pulse: invalid BPM range")
	ErrSessionMisconfigured = errors.New("pulse: invalid session config")
)

// Batch is one contiguous run of samples, typically one file. Times are in
// seconds and usually start near zero; the session adds its own offset.
type Batch struct {
	Times  []float64
	Values []float64
}

// Len is the number of samples.
func (b Batch) Len() int { return len(b.Times) }

// BatchSummary accounts for every beat boundary pair of one batch. Accepted,
// Rejected and Calibrating always sum to Beats.
type BatchSummary struct {
	Samples     int
	SamplingHz  float64
	MinPoints   int
	MaxPoints   int
	Candidates  int
	Relaxations int

	Beats       int
	Accepted    int
	Rejected    int
	Calibrating int

	Calibration CalibrationState
}

// Recording is the accumulated session signal: time with the session offset
// applied, raw samples, and the calibrated samples of every beat measured
// after calibration, written back at their position (zero elsewhere).
type Recording struct {
	Time     []float64
	Signal   []float64
	Filtered []float64
}

// Session owns the state for one subject recording.
type Session struct {
	cfg Config

	seg        Segmenter
	cal        Calibration
	table      *FeatureTable
	heartRate  *HeartRateTracker
	timeOffset float64

	diagnostics []Diagnostic
	beats       []Beat
	rec         Recording
	batches     int
}

// NewSession validates cfg and returns an empty session.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMisconfigured, err)
	}
	cfg.ActiveFeatures = append([]string(nil), cfg.ActiveFeatures...)
	s := &Session{cfg: cfg}
	s.Reset()
	return s, nil
}

// Reset returns the session to its freshly constructed state. Call it
// between unrelated subjects.
func (s *Session) Reset() {
	s.seg = Segmenter{
		ThresholdFraction: s.cfg.ThresholdFraction,
		WarmupSeconds:     s.cfg.WarmupSeconds,
	}
	s.cal.Reset()
	s.table = NewFeatureTable(s.cfg.ActiveFeatures, s.cfg.AverageWindowSeconds, s.cfg.TrimProportion)
	s.heartRate = NewHeartRateTracker(s.cfg.AverageWindowSeconds)
	s.timeOffset = 0
	s.diagnostics = nil
	s.beats = nil
	s.rec = Recording{}
	s.batches = 0
}

// Config returns the session configuration.
func (s *Session) Config() Config { return s.cfg }

// SetPressureCalibration supplies the systolic and diastolic references
// (for example parsed from a file name). Self-calibration then never
// overwrites them.
func (s *Session) SetPressureCalibration(systolic, diastolic float64) {
	s.cal.SetReferences(systolic, diastolic)
	opsf("pressure references set: systolic=%.2f diastolic=%.2f", systolic, diastolic)
}

// SetCalibratedAmplitude fixes the reference amplitude so beats are scaled
// and measured from the first batch on.
func (s *Session) SetCalibratedAmplitude(amplitude float64) error {
	if err := s.cal.SetAmplitude(amplitude); err != nil {
		return err
	}
	opsf("calibrated amplitude set: %.4f", amplitude)
	return nil
}

// Process runs ProcessBatch with the configured BPM bounds.
func (s *Session) Process(b Batch) (BatchSummary, error) {
	return s.ProcessBatch(b.Times, b.Values, s.cfg.MinBPM, s.cfg.MaxBPM)
}

// ProcessBatch segments one batch, extracts features from every beat that
// validates, and appends them to the session tables. Malformed input fails
// with a sentinel error before any state changes; beat-level problems only
// raise diagnostics. The summary reports the calibration state after the
// batch, including an amplitude fixed at its end.
func (s *Session) ProcessBatch(times, values []float64, minBPM, maxBPM float64) (sum BatchSummary, err error) {
	if err := validateBatch(times, values, minBPM, maxBPM); err != nil {
		return BatchSummary{}, err
	}

	n := len(times)
	fs := SamplingRate(times)
	minPoints, maxPoints := PointsPerBeat(fs, minBPM, maxBPM)
	sum = BatchSummary{Samples: n, SamplingHz: fs, MinPoints: minPoints, MaxPoints: maxPoints}
	diagf("batch %d: %d samples at %.2f Hz, beat length [%d, %d] samples",
		s.batches, n, fs, minPoints, maxPoints)

	recBase := len(s.rec.Time)
	for i := range times {
		s.rec.Time = append(s.rec.Time, times[i]+s.timeOffset)
	}
	s.rec.Signal = append(s.rec.Signal, values...)
	s.rec.Filtered = append(s.rec.Filtered, make([]float64, n)...)

	defer s.finishBatch(times, &sum)

	firstDer, err := dsp.SavitzkyGolay(values, 9, 2, 1)
	if err != nil {
		return sum, fmt.Errorf("segmentation derivative: %w", err)
	}
	warm := s.timeOffset != 0
	candidates, relaxations := s.seg.SeparateRelaxed(times, firstDer, minPoints, warm, s.cfg.MaxRelaxations)
	sum.Candidates, sum.Relaxations = len(candidates), relaxations
	if relaxations > 0 {
		s.emit(Diagnostic{
			Reason: ThresholdRelaxed, Time: times[0] + s.timeOffset, Start: -1, End: -1,
			Detail: fmt.Sprintf("threshold halved %d times to %.4g", relaxations, s.seg.PeakStandard),
		})
	}
	if len(candidates) < 2 {
		s.emit(Diagnostic{
			Reason: NoCandidates, Time: times[0] + s.timeOffset, Start: -1, End: -1,
			Detail: fmt.Sprintf("%d rise candidates, need at least 2", len(candidates)),
		})
		return sum, nil
	}

	norm, err := NewNormalizer(s.cfg, fs)
	if err != nil {
		return sum, err
	}

	bounds := Boundaries(values, candidates, maxPoints)
	start := bounds[0]
	for k := 1; k < len(bounds); k++ {
		end := bounds[k]
		endTime := times[end] + s.timeOffset
		sum.Beats++

		s.heartRate.Add(endTime)

		if r := checkBeatSize(start, end, minPoints, maxPoints); r != ReasonNone {
			s.reject(&sum, r, endTime, start, end,
				fmt.Sprintf("span of %d samples outside [%d, %d]", end-start, minPoints, maxPoints))
			start = end
			continue
		}

		beat, err := norm.Prepare(times, values, start, end)
		if err != nil {
			return sum, fmt.Errorf("beat [%d, %d]: %w", start, end, err)
		}
		beat.EndTime = endTime

		if !s.cal.HasReferences() {
			peak := dsp.FindNearbyMaximum(values, candidates[k-1], 1, maxPoints)
			s.cal.SetReferences(values[peak], beat.Diastolic)
			opsf("self-calibrated pressure references: systolic=%.4f diastolic=%.4f", values[peak], beat.Diastolic)
		}

		if s.cal.Fixed() {
			beat.Normalized = s.cal.Calibrate(beat.Normalized)
			copy(s.rec.Filtered[recBase+start:recBase+end+1], beat.Normalized)
			s.measure(&sum, &beat)
		} else {
			collected := s.cal.Collect(dsp.Max(beat.Normalized))
			sum.Calibrating++
			tracef("beat at t=%.3fs collected for calibration (%d so far)", endTime, collected)
			if s.cfg.CalibrationBeats > 0 && collected >= s.cfg.CalibrationBeats && s.cal.FixAmplitude() {
				opsf("calibrated amplitude fixed at %.4f after %d beats", s.cal.Amplitude, collected)
			}
		}

		start = end
	}
	return sum, nil
}

// measure runs landmark detection and feature extraction on a calibrated
// beat and records the outcome.
func (s *Session) measure(sum *BatchSummary, beat *Beat) {
	lm, reason := DetectLandmarks(beat, s.cfg.DicroticSkipFraction)
	beat.Landmarks = lm
	if reason != ReasonNone {
		s.reject(sum, reason, beat.EndTime, beat.Start, beat.End, fmt.Sprintf("landmarks %+v", lm))
		return
	}

	features := ComputeFeatures(beat, lm)
	beat.Features = &features
	s.table.Append(FeatureRow{Time: features.Time, Values: features.Values(s.cfg.ActiveFeatures)})
	sum.Accepted++
	tracef("beat at t=%.3fs accepted: systolic=%d notch=%d dicrotic=%d",
		beat.EndTime, lm.SystolicPeak, lm.DicroticNotch, lm.DicroticPeak)

	if s.cfg.RetainBeats {
		s.beats = append(s.beats, *beat)
	}
}

func (s *Session) reject(sum *BatchSummary, reason Reason, t float64, start, end int, detail string) {
	sum.Rejected++
	s.emit(Diagnostic{Reason: reason, Time: t, Start: start, End: end, Detail: detail})
}

func (s *Session) emit(d Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)
	diagf("%s", d)
	if s.cfg.DiagnosticSink != nil {
		s.cfg.DiagnosticSink(d)
	}
}

// finishBatch advances the session clock and, on the default schedule,
// fixes the calibration amplitude.
func (s *Session) finishBatch(times []float64, sum *BatchSummary) {
	s.timeOffset += times[len(times)-1]
	s.batches++
	if !s.cal.Fixed() && s.cfg.CalibrationBeats == 0 && s.cal.FixAmplitude() {
		opsf("calibrated amplitude fixed at %.4f from %d beats", s.cal.Amplitude, len(s.cal.Collected()))
	}
	sum.Calibration = s.cal.State()
}

// checkBeatSize culls spans longer than maxPoints (likely two merged beats)
// or shorter than minPoints (likely a spurious rise).
func checkBeatSize(start, end, minPoints, maxPoints int) Reason {
	switch span := end - start; {
	case span > maxPoints:
		return BeatTooLong
	case span < minPoints || span <= 0:
		return BeatTooShort
	}
	return ReasonNone
}

func validateBatch(times, values []float64, minBPM, maxBPM float64) error {
	if len(times) == 0 || len(values) == 0 {
		return ErrEmptySignal
	}
	if len(times) != len(values) {
		return fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, len(times), len(values))
	}
	if len(times) < 2 {
		return fmt.Errorf("%w: a single sample has no duration", ErrEmptySignal)
	}
	for i := range times {
		if math.IsNaN(times[i]) || math.IsInf(times[i], 0) || math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return fmt.Errorf("%w at index %d", ErrNonFiniteSample, i)
		}
		if i > 0 && times[i] <= times[i-1] {
			return fmt.Errorf("%w at index %d (%g after %g)", ErrNonIncreasingTime, i, times[i], times[i-1])
		}
	}
	if !(minBPM > 0) || !(maxBPM > minBPM) {
		return fmt.Errorf("%w: [%g, %g]", ErrBadBPMRange, minBPM, maxBPM)
	}
	return nil
}

// ExactFeatures returns one row per accepted beat.
func (s *Session) ExactFeatures() []FeatureRow { return s.table.Exact() }

// AveragedFeatures returns the trailing trimmed mean at each accepted beat.
func (s *Session) AveragedFeatures() []FeatureRow { return s.table.Average() }

// FeatureNames returns the active feature columns.
func (s *Session) FeatureNames() []string { return s.table.Names() }

// HeartRateSeries returns one BPM estimate per beat boundary pair.
func (s *Session) HeartRateSeries() []float64 { return s.heartRate.Series() }

// HeartRateSamples returns the estimates with their session times.
func (s *Session) HeartRateSamples() []HeartRateSample { return s.heartRate.Samples() }

// Diagnostics returns every event raised since the last reset.
func (s *Session) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// Beats returns the accepted beats when RetainBeats is set.
func (s *Session) Beats() []Beat {
	out := make([]Beat, len(s.beats))
	copy(out, s.beats)
	return out
}

// Recording returns a copy of the accumulated signal.
func (s *Session) Recording() Recording {
	return Recording{
		Time:     append([]float64(nil), s.rec.Time...),
		Signal:   append([]float64(nil), s.rec.Signal...),
		Filtered: append([]float64(nil), s.rec.Filtered...),
	}
}

// Calibration returns a snapshot of the calibration state.
func (s *Session) Calibration() Calibration {
	c := s.cal
	c.peaks = c.Collected()
	return c
}

// TimeOffset is the session time at which the next batch starts.
func (s *Session) TimeOffset() float64 { return s.timeOffset }

// Batches is the number of batches processed since the last reset.
func (s *Session) Batches() int { return s.batches }
