package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/pulse"
	"github.com/banshee-data/pulse.report/internal/serialmux"
)

// storedSession saves one flat batch, which yields diagnostics but no beats.
func storedSession(t *testing.T) (*db.DB, string) {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec, err := store.CreateSession("subject-api", config.EmptyTuningConfig())
	require.NoError(t, err)

	s, err := pulse.NewSession(pulse.DefaultConfig())
	require.NoError(t, err)
	times := make([]float64, 1000)
	for i := range times {
		times[i] = float64(i) / 500
	}
	sum, err := s.Process(pulse.Batch{Times: times, Values: make([]float64, 1000)})
	require.NoError(t, err)
	require.NoError(t, store.RecordBatch(rec.ID, 0, "flat.csv", sum))
	require.NoError(t, store.SaveResults(rec.ID, s))
	return store, rec.ID
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestListSessions(t *testing.T) {
	store, id := storedSession(t)
	h := NewServer(nil, store, nil).ServeMux()

	w := get(t, h, "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var sessions []sessionAPI
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, "subject-api", sessions[0].Subject)
	assert.Nil(t, sessions[0].Amplitude, "uncalibrated amplitude is omitted")
}

func TestSessionRoutes(t *testing.T) {
	store, id := storedSession(t)
	h := NewServer(nil, store, nil).ServeMux()

	tests := []struct {
		path   string
		status int
	}{
		{"/api/sessions/" + id, http.StatusOK},
		{"/api/sessions/" + id + "/features", http.StatusOK},
		{"/api/sessions/" + id + "/heart-rate", http.StatusOK},
		{"/api/sessions/" + id + "/diagnostics", http.StatusOK},
		{"/api/sessions/" + id + "/batches", http.StatusOK},
		{"/api/sessions/" + id + "/bogus", http.StatusNotFound},
		{"/api/sessions/unknown", http.StatusNotFound},
		{"/api/sessions/", http.StatusBadRequest},
		{"/report?session=" + id, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, h, tt.path)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSessionDiagnosticsAndBatches(t *testing.T) {
	store, id := storedSession(t)
	h := NewServer(nil, store, nil).ServeMux()

	var diags []diagnosticAPI
	w := get(t, h, "/api/sessions/"+id+"/diagnostics")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&diags))
	var reasons []string
	for _, d := range diags {
		reasons = append(reasons, d.Reason)
	}
	assert.Contains(t, reasons, pulse.NoCandidates.String())

	var batches []batchAPI
	w = get(t, h, "/api/sessions/"+id+"/batches")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&batches))
	require.Len(t, batches, 1)
	assert.Equal(t, "flat.csv", batches[0].Source)
	assert.Equal(t, 1000, batches[0].Samples)
}

func TestShowConfig(t *testing.T) {
	store, _ := storedSession(t)
	minBPM := 45.0
	h := NewServer(nil, store, &config.TuningConfig{MinBPM: &minBPM}).ServeMux()

	w := get(t, h, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 45.0, got["min_bpm"])
}

func TestSendCommand(t *testing.T) {
	store, _ := storedSession(t)
	post := func(h http.Handler, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	noSensor := NewServer(nil, store, nil).ServeMux()
	assert.Equal(t, http.StatusServiceUnavailable, post(noSensor, url.Values{"command": {"START"}}).Code)

	port := serialmux.NewTestableSerialPort()
	h := NewServer(serialmux.NewSerialMux(port), store, nil).ServeMux()
	assert.Equal(t, http.StatusBadRequest, post(h, url.Values{}).Code)
	assert.Equal(t, http.StatusOK, post(h, url.Values{"command": {"START"}}).Code)
	assert.Equal(t, "START\n", string(port.GetWrittenData()))

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, "/api/command").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := get(t, h, "/anything")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, statusCodeColor(404), "404")
	assert.Equal(t, "101", statusCodeColor(101))
}
