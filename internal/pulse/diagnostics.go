package pulse

import "fmt"

// Reason classifies why a beat was dropped or why segmentation needed help.
type Reason int

const (
	ReasonNone Reason = iota
	BeatTooLong
	BeatTooShort
	BadSystolicSequence
	BadTidalSequence
	BadDicroticSequence
	BadPeakSequence
	DicroticLikelySkipped
	ThresholdRelaxed
	NoCandidates
)

var reasonNames = map[Reason]string{
	ReasonNone:            "none",
	BeatTooLong:           "beat_too_long",
	BeatTooShort:          "beat_too_short",
	BadSystolicSequence:   "bad_systolic_sequence",
	BadTidalSequence:      "bad_tidal_sequence",
	BadDicroticSequence:   "bad_dicrotic_sequence",
	BadPeakSequence:       "bad_peak_sequence",
	DicroticLikelySkipped: "dicrotic_likely_skipped",
	ThresholdRelaxed:      "threshold_relaxed",
	NoCandidates:          "no_candidates",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown diagnostic reason %q", s)
}

// Rejects reports whether the reason drops a beat, as opposed to a
// batch-level notice.
func (r Reason) Rejects() bool {
	switch r {
	case BeatTooLong, BeatTooShort, BadSystolicSequence, BadTidalSequence,
		BadDicroticSequence, BadPeakSequence, DicroticLikelySkipped:
		return true
	}
	return false
}

// Diagnostic is one typed processing event. Time is session time in seconds
// (the beat end for beat-level events, the batch start otherwise). Start and
// End are batch-local sample indices; both are -1 for batch-level events.
type Diagnostic struct {
	Reason Reason
	Time   float64
	Start  int
	End    int
	Detail string
}

func (d Diagnostic) String() string {
	if d.Start < 0 {
		return fmt.Sprintf("%s at t=%.3fs: %s", d.Reason, d.Time, d.Detail)
	}
	return fmt.Sprintf("%s at t=%.3fs [%d:%d]: %s", d.Reason, d.Time, d.Start, d.End, d.Detail)
}
