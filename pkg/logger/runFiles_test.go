package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunFiles_CreatesDatedFiles(t *testing.T) {
	dir := t.TempDir()

	rf, err := NewRunFiles(dir)
	require.NoError(t, err)
	defer rf.Close()

	stamp := time.Now().Format("20060102")
	for prefix, f := range map[string]*os.File{
		"LOGS_":                  rf.General,
		"CRASH_LOGS_":            rf.Crash,
		"UPDATED_PRODUCTS_LOGS_": rf.Updates,
	} {
		require.NotNil(t, f, prefix)
		name := filepath.Base(f.Name())
		assert.Contains(t, name, prefix)
		assert.Contains(t, name, stamp)
	}
}

func TestNewRunFiles_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	rf, err := NewRunFiles(dir)
	require.NoError(t, err)
	defer rf.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCurrentDayFiles_OnlyTodaysFiles(t *testing.T) {
	dir := t.TempDir()
	today := time.Now().Format("20060102")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOGS_"+today+"_ab12.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOGS_20200101_ff00.txt"), nil, 0o644))

	files := CurrentDayFiles(dir)

	require.Len(t, files, 1)
	assert.Contains(t, files[0], today)
}

func TestBaseLogger_WritesPrefixedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := os.Create(path)
	require.NoError(t, err)

	l := NewLogger(f, "[test]")
	l.Log("stock level for %s: %d", "A1", 42)
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[test] stock level for A1: 42")
}
