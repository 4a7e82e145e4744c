package db

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "pulse.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

func TestNewDB_AppliesEmbeddedSchema(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(Migrations())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	for _, table := range []string{"pulse_sessions", "pulse_batches", "pulse_features", "pulse_heart_rate", "pulse_diagnostics"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		if err != nil || n != 1 {
			t.Errorf("table %s missing (n=%d, err=%v)", table, n, err)
		}
	}
}

func TestNewDB_ReopenIsNoChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")
	db1, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	db1.Close()

	db2, err := NewDB(path)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer db2.Close()
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	if err := db.MigrateDown(Migrations()); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name='pulse_sessions'").Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Error("pulse_sessions should be dropped after MigrateDown")
	}
}

func TestMigrateUp_CustomFS(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "custom.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	migrations := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t1;")},
	}
	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateUp(migrations); err != nil {
		t.Errorf("second MigrateUp should be a no-op, got %v", err)
	}
}

func TestMigrateUp_ClosedDB(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	db.Close()
	if err := db.MigrateUp(Migrations()); err == nil {
		t.Error("expected error from MigrateUp on closed DB")
	}
}

func TestAttachAdminRoutes_Registered(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	for _, path := range []string{"/debug/backup", "/debug/tailsql/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		// debug access may be refused for non-local callers, but the route must exist
		if w.Code == http.StatusNotFound {
			t.Errorf("route %s not registered", path)
		}
	}
}

func TestServeBackup_StreamsGzippedDatabase(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateSession("subject-a", nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Errorf("backup does not look like a SQLite file: %q", data[:min(16, len(data))])
	}
}
