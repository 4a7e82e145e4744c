package db

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintMigrateHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintMigrateHelp(&buf)
	assert.Contains(t, buf.String(), "pulse-analyse")
	assert.Contains(t, buf.String(), "force <N>")
}

func TestLatestMigrationVersion(t *testing.T) {
	latest, err := LatestMigrationVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), latest)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	var buf bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &buf))
	assert.Contains(t, buf.String(), "Current version: 0")

	buf.Reset()
	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &buf))
	assert.Contains(t, buf.String(), "Current version: 1")
	assert.Contains(t, buf.String(), "Dirty: false")

	buf.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, path, &buf))
	assert.Contains(t, buf.String(), "Current version: 0")

	buf.Reset()
	require.NoError(t, RunMigrateCommand([]string{"version", "1"}, path, &buf))
	assert.Contains(t, buf.String(), "Migrated to version 1")

	buf.Reset()
	require.NoError(t, RunMigrateCommand([]string{"force", "1"}, path, &buf))
	assert.Contains(t, buf.String(), "forced to 1")
}

func TestRunMigrateCommand_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	var buf bytes.Buffer

	assert.Error(t, RunMigrateCommand(nil, path, &buf))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &buf))
	assert.Error(t, RunMigrateCommand([]string{"version"}, path, &buf))
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path, &buf))
	assert.NoError(t, RunMigrateCommand([]string{"help"}, path, &buf))
}
