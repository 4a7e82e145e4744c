// Package api serves stored pulse sessions as JSON and exposes the live
// sensor command endpoint.
package api

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/httputil"
	"github.com/banshee-data/pulse.report/internal/report"
	"github.com/banshee-data/pulse.report/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server holds the collaborators the handlers read from. m may be nil when
// no sensor is attached.
type Server struct {
	m      serialmux.SerialMuxInterface
	db     *db.DB
	tuning *config.TuningConfig
}

func NewServer(m serialmux.SerialMuxInterface, db *db.DB, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	return &Server{m: m, db: db, tuning: tuning}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. The report page is served at /report.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.sessionRoutes)
	mux.Handle("/report", report.Handler(s.db, ""))
	return mux
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no sensor attached")
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "failed to send command")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"sent": command})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tuning)
}

// sessionAPI is a stored session with NaN calibration values omitted.
type sessionAPI struct {
	ID               string   `json:"id"`
	Subject          string   `json:"subject"`
	CreatedUnix      float64  `json:"created_unix"`
	Systolic0        *float64 `json:"systolic_ref,omitempty"`
	Diastolic0       *float64 `json:"diastolic_ref,omitempty"`
	Amplitude        *float64 `json:"amplitude,omitempty"`
	CalibrationState string   `json:"calibration_state"`
	Batches          int      `json:"batches"`
}

func sessionToAPI(s db.Session) sessionAPI {
	return sessionAPI{
		ID:               s.ID,
		Subject:          s.Subject,
		CreatedUnix:      s.CreatedUnix,
		Systolic0:        finiteOrNil(s.Systolic0),
		Diastolic0:       finiteOrNil(s.Diastolic0),
		Amplitude:        finiteOrNil(s.Amplitude),
		CalibrationState: s.CalibrationState,
		Batches:          s.Batches,
	}
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	sessions, err := s.db.ListSessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	out := make([]sessionAPI, len(sessions))
	for i, sess := range sessions {
		out[i] = sessionToAPI(sess)
	}
	httputil.WriteJSONOK(w, out)
}

// sessionRoutes dispatches /api/sessions/{id}[/features|/heart-rate|/diagnostics|/batches].
func (s *Server) sessionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}

	sess, err := s.db.GetSession(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	switch sub {
	case "":
		httputil.WriteJSONOK(w, sessionToAPI(*sess))
	case "features":
		s.writeFeatures(w, id)
	case "heart-rate":
		s.writeHeartRate(w, id)
	case "diagnostics":
		s.writeDiagnostics(w, id)
	case "batches":
		s.writeBatches(w, id)
	default:
		httputil.NotFound(w, "unknown session resource "+sub)
	}
}

type featureAPI struct {
	BeatIndex int      `json:"beat_index"`
	BeatTime  float64  `json:"beat_time"`
	Feature   string   `json:"feature"`
	Exact     *float64 `json:"exact"`
	Averaged  *float64 `json:"averaged"`
}

func (s *Server) writeFeatures(w http.ResponseWriter, id string) {
	values, err := s.db.ListFeatureValues(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]featureAPI, len(values))
	for i, v := range values {
		out[i] = featureAPI{
			BeatIndex: v.BeatIndex,
			BeatTime:  v.BeatTime,
			Feature:   v.Feature,
			Exact:     finiteOrNil(v.Exact),
			Averaged:  finiteOrNil(v.Averaged),
		}
	}
	httputil.WriteJSONOK(w, out)
}

type heartRateAPI struct {
	Time float64  `json:"time"`
	BPM  *float64 `json:"bpm"`
}

func (s *Server) writeHeartRate(w http.ResponseWriter, id string) {
	samples, err := s.db.ListHeartRate(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]heartRateAPI, len(samples))
	for i, hr := range samples {
		out[i] = heartRateAPI{Time: hr.Time, BPM: finiteOrNil(hr.BPM)}
	}
	httputil.WriteJSONOK(w, out)
}

type diagnosticAPI struct {
	Reason string  `json:"reason"`
	Time   float64 `json:"time"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Detail string  `json:"detail,omitempty"`
}

func (s *Server) writeDiagnostics(w http.ResponseWriter, id string) {
	diags, err := s.db.ListDiagnostics(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]diagnosticAPI, len(diags))
	for i, d := range diags {
		out[i] = diagnosticAPI{Reason: d.Reason.String(), Time: d.Time, Start: d.Start, End: d.End, Detail: d.Detail}
	}
	httputil.WriteJSONOK(w, out)
}

type batchAPI struct {
	Index       int     `json:"index"`
	Source      string  `json:"source"`
	Samples     int     `json:"samples"`
	SamplingHz  float64 `json:"sampling_hz"`
	Beats       int     `json:"beats"`
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Calibrating int     `json:"calibrating"`
}

func (s *Server) writeBatches(w http.ResponseWriter, id string) {
	batches, err := s.db.ListBatches(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	out := make([]batchAPI, len(batches))
	for i, b := range batches {
		out[i] = batchAPI{
			Index:       b.Index,
			Source:      b.Source,
			Samples:     b.Summary.Samples,
			SamplingHz:  b.Summary.SamplingHz,
			Beats:       b.Summary.Beats,
			Accepted:    b.Summary.Accepted,
			Rejected:    b.Summary.Rejected,
			Calibrating: b.Summary.Calibrating,
		}
	}
	httputil.WriteJSONOK(w, out)
}
