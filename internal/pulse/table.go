package pulse

import (
	"math"
	"sort"

	"github.com/banshee-data/pulse.report/internal/dsp"
)

// FeatureRow is one beat's active features at a session time.
type FeatureRow struct {
	Time   float64
	Values []float64
}

// FeatureTable keeps the exact per-beat rows and, for each, the trimmed
// mean over the trailing window ending at that beat.
type FeatureTable struct {
	names  []string
	window float64
	trim   float64

	exact   []FeatureRow
	average []FeatureRow
}

// NewFeatureTable creates an empty table over the named columns.
func NewFeatureTable(names []string, windowSeconds, trimProportion float64) *FeatureTable {
	cols := make([]string, len(names))
	copy(cols, names)
	return &FeatureTable{names: cols, window: windowSeconds, trim: trimProportion}
}

// Names returns the column names.
func (t *FeatureTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Append adds an exact row and returns the averaged row computed over every
// exact row with Time >= row.Time-window.
func (t *FeatureTable) Append(row FeatureRow) FeatureRow {
	t.exact = append(t.exact, cloneRow(row))

	lower := row.Time - t.window
	cols := make([][]float64, len(t.names))
	for _, r := range t.exact {
		if r.Time < lower {
			continue
		}
		for c := range cols {
			if c < len(r.Values) {
				cols[c] = append(cols[c], r.Values[c])
			}
		}
	}
	avg := FeatureRow{Time: row.Time, Values: make([]float64, len(t.names))}
	for c, vals := range cols {
		avg.Values[c] = dsp.TrimMean(vals, t.trim)
	}
	t.average = append(t.average, avg)
	return cloneRow(avg)
}

// Len is the number of rows in each table.
func (t *FeatureTable) Len() int { return len(t.exact) }

// Exact returns a copy of the exact rows.
func (t *FeatureTable) Exact() []FeatureRow { return cloneRows(t.exact) }

// Average returns a copy of the averaged rows.
func (t *FeatureTable) Average() []FeatureRow { return cloneRows(t.average) }

// Reset drops all rows.
func (t *FeatureTable) Reset() {
	t.exact = nil
	t.average = nil
}

func cloneRow(r FeatureRow) FeatureRow {
	v := make([]float64, len(r.Values))
	copy(v, r.Values)
	return FeatureRow{Time: r.Time, Values: v}
}

func cloneRows(rows []FeatureRow) []FeatureRow {
	out := make([]FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = cloneRow(r)
	}
	return out
}

// HeartRateSample is the rate estimate recorded at one beat boundary.
type HeartRateSample struct {
	Time float64
	BPM  float64
}

// HeartRateTracker estimates beats per minute from beat end times over a
// trailing window.
type HeartRateTracker struct {
	window  float64
	times   []float64
	samples []HeartRateSample
}

// NewHeartRateTracker creates a tracker over a trailing window in seconds.
func NewHeartRateTracker(windowSeconds float64) *HeartRateTracker {
	return &HeartRateTracker{window: windowSeconds}
}

// Add records a beat ending at t and returns the rate at t. Beats strictly
// inside (t-window, t] are counted. Until the history spans a full window
// the rate is taken over the span covered instead, so early estimates are
// not biased low.
func (h *HeartRateTracker) Add(t float64) float64 {
	pos := sort.SearchFloat64s(h.times, t)
	for pos < len(h.times) && h.times[pos] <= t {
		pos++
	}
	h.times = append(h.times, 0)
	copy(h.times[pos+1:], h.times[pos:])
	h.times[pos] = t

	h.samples = append(h.samples, HeartRateSample{Time: t, BPM: h.rateAt(t)})
	return h.samples[len(h.samples)-1].BPM
}

func (h *HeartRateTracker) rateAt(t float64) float64 {
	lower := t - h.window
	first := sort.Search(len(h.times), func(i int) bool { return h.times[i] > lower })
	count := len(h.times) - first

	span := t - h.times[0]
	if span >= h.window {
		return float64(count) * 60 / h.window
	}
	if len(h.times) < 2 || span <= 0 {
		return 0
	}
	return float64(count-1) * 60 / span
}

// Samples returns the recorded estimates in order.
func (h *HeartRateTracker) Samples() []HeartRateSample {
	out := make([]HeartRateSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Series returns just the BPM values in order.
func (h *HeartRateTracker) Series() []float64 {
	out := make([]float64, len(h.samples))
	for i, s := range h.samples {
		out[i] = s.BPM
	}
	return out
}

// Latest returns the most recent estimate, NaN before the first beat.
func (h *HeartRateTracker) Latest() float64 {
	if len(h.samples) == 0 {
		return math.NaN()
	}
	return h.samples[len(h.samples)-1].BPM
}

// Reset drops all history.
func (h *HeartRateTracker) Reset() {
	h.times = nil
	h.samples = nil
}
