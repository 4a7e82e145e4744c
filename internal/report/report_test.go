package report

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/pulse"
)

func sampleData() Data {
	d := Data{
		Subject:      "subject-07",
		FeatureNames: []string{"systolic_upslope_area", "reflection_index"},
		Reasons:      map[string]int{"beat_too_long": 3, "threshold_relaxed": 1},
	}
	for i := 0; i < 10; i++ {
		ti := float64(i) + 0.5
		d.HeartRate = append(d.HeartRate, pulse.HeartRateSample{Time: ti, BPM: 60 + float64(i)})
		d.Exact = append(d.Exact, pulse.FeatureRow{Time: ti, Values: []float64{float64(i), math.NaN()}})
		d.Average = append(d.Average, pulse.FeatureRow{Time: ti, Values: []float64{4.5, math.Inf(1)}})
	}
	return d
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleData()))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Pulse report: subject-07")
	assert.Contains(t, html, "systolic_upslope_area")
	assert.Contains(t, html, "reflection_index")
	assert.Contains(t, html, "beat_too_long")
	assert.Contains(t, html, "Heart rate")
}

func TestRender_EmptyData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Data{}))
	assert.Contains(t, buf.String(), "Pulse report")
}

func TestRender_AssetsHost(t *testing.T) {
	d := sampleData()
	d.AssetsHost = "http://localhost:8080/assets/"
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, d))
	assert.Contains(t, buf.String(), "http://localhost:8080/assets/")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteFile(path, sampleData()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "subject-07"))

	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "missing", "r.html"), sampleData()))
}

func TestFromSession(t *testing.T) {
	s, err := pulse.NewSession(pulse.DefaultConfig())
	require.NoError(t, err)

	// A flat batch raises batch-level diagnostics only.
	times := make([]float64, 1000)
	values := make([]float64, 1000)
	for i := range times {
		times[i] = float64(i) / 500
	}
	_, err = s.Process(pulse.Batch{Times: times, Values: values})
	require.NoError(t, err)

	d := FromSession("flat", "id-1", s)
	assert.Equal(t, "flat", d.Subject)
	assert.Equal(t, s.FeatureNames(), d.FeatureNames)
	assert.Empty(t, d.Exact)
	assert.Equal(t, 1, d.Reasons[pulse.NoCandidates.String()])
	assert.Equal(t, 1, d.Reasons[pulse.ThresholdRelaxed.String()])
}

func TestPivot(t *testing.T) {
	values := []db.FeatureValue{
		{BeatIndex: 0, BeatTime: 1.5, Feature: "a", Exact: 1, Averaged: 1},
		{BeatIndex: 0, BeatTime: 1.5, Feature: "b", Exact: 2, Averaged: 2},
		{BeatIndex: 1, BeatTime: 2.5, Feature: "a", Exact: 3, Averaged: 2},
		{BeatIndex: 2, BeatTime: 3.5, Feature: "b", Exact: 4, Averaged: 3},
	}
	names, exact, average := pivot(values)
	assert.Equal(t, []string{"a", "b"}, names)
	require.Len(t, exact, 3)
	require.Len(t, average, 3)

	assert.Equal(t, []float64{1, 2}, exact[0].Values)
	assert.Equal(t, 2.5, exact[1].Time)
	assert.Equal(t, 3.0, exact[1].Values[0])
	assert.True(t, math.IsNaN(exact[1].Values[1]))
	assert.True(t, math.IsNaN(average[2].Values[0]))
	assert.Equal(t, 3.0, average[2].Values[1])

	names, exact, _ = pivot(nil)
	assert.Empty(t, names)
	assert.Empty(t, exact)
}

func newTestStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHandler(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.CreateSession("subject-09", config.EmptyTuningConfig())
	require.NoError(t, err)

	h := Handler(store, "")

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"stored session", http.MethodGet, "/report?session=" + sess.ID, http.StatusOK},
		{"missing parameter", http.MethodGet, "/report", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/report?session=nope", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/report?session=" + sess.ID, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "subject-09")
				assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			}
		})
	}
}
