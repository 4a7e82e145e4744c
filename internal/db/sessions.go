package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/pulse"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("db: session not found")

// Session is one stored analysis run for a subject.
type Session struct {
	ID               string
	Subject          string
	CreatedUnix      float64
	Systolic0        float64 // NaN until calibrated
	Diastolic0       float64
	Amplitude        float64
	CalibrationState string
	Batches          int
	ConfigJSON       string
}

// FeatureValue is one feature of one accepted beat.
type FeatureValue struct {
	BeatIndex int
	BeatTime  float64
	Feature   string
	Exact     float64
	Averaged  float64
}

// BatchRecord is the stored summary of one processed batch.
type BatchRecord struct {
	Index   int
	Source  string
	Summary pulse.BatchSummary
}

// CreateSession inserts a new session for subject with a fresh UUID. The
// tuning is stored verbatim for reproducibility.
func (db *DB) CreateSession(subject string, tuning *config.TuningConfig) (*Session, error) {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	cfgJSON, err := json.Marshal(tuning)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tuning: %w", err)
	}
	s := &Session{
		ID:               uuid.NewString(),
		Subject:          subject,
		CreatedUnix:      float64(time.Now().UnixNano()) / 1e9,
		Systolic0:        math.NaN(),
		Diastolic0:       math.NaN(),
		Amplitude:        math.NaN(),
		CalibrationState: pulse.CalibrationUnset.String(),
		ConfigJSON:       string(cfgJSON),
	}
	_, err = db.Exec(`
		INSERT INTO pulse_sessions (session_id, subject, created_unix, calibration_state, config_json)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Subject, s.CreatedUnix, s.CalibrationState, s.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// RecordBatch stores the summary of one processed batch.
func (db *DB) RecordBatch(sessionID string, index int, source string, sum pulse.BatchSummary) error {
	_, err := db.Exec(`
		INSERT INTO pulse_batches (
			session_id, batch_index, source, samples, sampling_hz, candidates,
			relaxations, beats, accepted, rejected, calibrating
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, index, source, sum.Samples, sum.SamplingHz, sum.Candidates,
		sum.Relaxations, sum.Beats, sum.Accepted, sum.Rejected, sum.Calibrating)
	if err != nil {
		return fmt.Errorf("failed to record batch %d: %w", index, err)
	}
	return nil
}

// SaveResults replaces the stored features, heart rate and diagnostics of a
// session with the current contents of s, and updates its calibration, in
// one transaction.
func (db *DB) SaveResults(sessionID string, s *pulse.Session) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	cal := s.Calibration()
	res, err := tx.Exec(`
		UPDATE pulse_sessions
		SET systolic_ref = ?, diastolic_ref = ?, amplitude = ?, calibration_state = ?, batches = ?
		WHERE session_id = ?`,
		calibrationValue(cal.HasReferences(), cal.Systolic0),
		calibrationValue(cal.HasReferences(), cal.Diastolic0),
		calibrationValue(cal.Fixed(), cal.Amplitude),
		cal.State().String(), s.Batches(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	for _, table := range []string{"pulse_features", "pulse_heart_rate", "pulse_diagnostics"} {
		if _, err = tx.Exec("DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	names := s.FeatureNames()
	exact, averaged := s.ExactFeatures(), s.AveragedFeatures()
	featureStmt, err := tx.Prepare(`
		INSERT INTO pulse_features (session_id, beat_index, beat_time, feature, exact, averaged)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer featureStmt.Close()
	for i, row := range exact {
		for c, name := range names {
			if _, err = featureStmt.Exec(sessionID, i, row.Time, name,
				nullFloat(row.Values[c]), nullFloat(averaged[i].Values[c])); err != nil {
				return fmt.Errorf("failed to insert feature %s of beat %d: %w", name, i, err)
			}
		}
	}

	for i, hr := range s.HeartRateSamples() {
		if _, err = tx.Exec(`
			INSERT INTO pulse_heart_rate (session_id, beat_index, beat_time, bpm)
			VALUES (?, ?, ?, ?)`, sessionID, i, hr.Time, hr.BPM); err != nil {
			return fmt.Errorf("failed to insert heart rate %d: %w", i, err)
		}
	}

	for i, d := range s.Diagnostics() {
		if _, err = tx.Exec(`
			INSERT INTO pulse_diagnostics (session_id, seq, reason, event_time, start_index, end_index, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, i, d.Reason.String(), d.Time, d.Start, d.End, d.Detail); err != nil {
			return fmt.Errorf("failed to insert diagnostic %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// GetSession loads one session by ID.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT session_id, subject, created_unix, systolic_ref, diastolic_ref, amplitude,
			calibration_state, batches, config_json
		FROM pulse_sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// ListSessions returns every session, newest first.
func (db *DB) ListSessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT session_id, subject, created_unix, systolic_ref, diastolic_ref, amplitude,
			calibration_state, batches, config_json
		FROM pulse_sessions ORDER BY created_unix DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s                   Session
		systolic, diastolic sql.NullFloat64
		amplitude           sql.NullFloat64
	)
	if err := r.Scan(&s.ID, &s.Subject, &s.CreatedUnix, &systolic, &diastolic, &amplitude,
		&s.CalibrationState, &s.Batches, &s.ConfigJSON); err != nil {
		return nil, err
	}
	s.Systolic0 = floatOrNaN(systolic)
	s.Diastolic0 = floatOrNaN(diastolic)
	s.Amplitude = floatOrNaN(amplitude)
	return &s, nil
}

// ListFeatureValues returns the stored features of a session ordered by
// beat and feature name.
func (db *DB) ListFeatureValues(sessionID string) ([]FeatureValue, error) {
	rows, err := db.Query(`
		SELECT beat_index, beat_time, feature, exact, averaged
		FROM pulse_features WHERE session_id = ?
		ORDER BY beat_index, feature`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeatureValue
	for rows.Next() {
		var (
			v               FeatureValue
			exact, averaged sql.NullFloat64
		)
		if err := rows.Scan(&v.BeatIndex, &v.BeatTime, &v.Feature, &exact, &averaged); err != nil {
			return nil, err
		}
		v.Exact = floatOrNaN(exact)
		v.Averaged = floatOrNaN(averaged)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListHeartRate returns the stored heart-rate series of a session.
func (db *DB) ListHeartRate(sessionID string) ([]pulse.HeartRateSample, error) {
	rows, err := db.Query(`
		SELECT beat_time, bpm FROM pulse_heart_rate
		WHERE session_id = ? ORDER BY beat_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pulse.HeartRateSample
	for rows.Next() {
		var hr pulse.HeartRateSample
		if err := rows.Scan(&hr.Time, &hr.BPM); err != nil {
			return nil, err
		}
		out = append(out, hr)
	}
	return out, rows.Err()
}

// ListDiagnostics returns the stored diagnostics of a session in the order
// they were raised.
func (db *DB) ListDiagnostics(sessionID string) ([]pulse.Diagnostic, error) {
	rows, err := db.Query(`
		SELECT reason, event_time, start_index, end_index, detail
		FROM pulse_diagnostics WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pulse.Diagnostic
	for rows.Next() {
		var (
			d      pulse.Diagnostic
			reason string
		)
		if err := rows.Scan(&reason, &d.Time, &d.Start, &d.End, &d.Detail); err != nil {
			return nil, err
		}
		if d.Reason, err = pulse.ParseReason(reason); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListBatches returns the batch summaries of a session in processing order.
func (db *DB) ListBatches(sessionID string) ([]BatchRecord, error) {
	rows, err := db.Query(`
		SELECT batch_index, source, samples, sampling_hz, candidates, relaxations,
			beats, accepted, rejected, calibrating
		FROM pulse_batches WHERE session_id = ? ORDER BY batch_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var b BatchRecord
		s := &b.Summary
		if err := rows.Scan(&b.Index, &b.Source, &s.Samples, &s.SamplingHz, &s.Candidates,
			&s.Relaxations, &s.Beats, &s.Accepted, &s.Rejected, &s.Calibrating); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReasonCounts tallies the diagnostics of a session by reason name.
func (db *DB) ReasonCounts(sessionID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT reason, COUNT(*) FROM pulse_diagnostics
		WHERE session_id = ? GROUP BY reason`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

// nullFloat maps NaN and infinities to SQL NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func calibrationValue(valid bool, v float64) sql.NullFloat64 {
	if !valid {
		return sql.NullFloat64{}
	}
	return nullFloat(v)
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
