package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/grant-assistant/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("deadlines:\n  store_path: %s\nlogging:\n  level: error\n", filepath.Join(dir, "deadlines.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSplitCSVAndParseInts(t *testing.T) {
	assert.Equal(t, []string{"youth", "tutoring"}, splitCSV(" youth, ,tutoring "))
	assert.Nil(t, splitCSV(""))

	got, err := parseInts("14, 7")
	require.NoError(t, err)
	assert.Equal(t, []int{14, 7}, got)

	_, err = parseInts("7,soon")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestDeadlinesCommands(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := execute(t, "deadlines", "add", "G1", "2026-03-01", "--offsets", "14,7", "--config", cfg)
	require.NoError(t, err)

	out, err := execute(t, "deadlines", "list", "--json", "--config", cfg)
	require.NoError(t, err)
	var ds []models.Deadline
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	require.Len(t, ds, 1)
	assert.Equal(t, "G1", ds[0].GrantID)
	assert.Equal(t, []int{7, 14}, ds[0].NotifyOffsets)
	assert.Equal(t, "2026-03-01T23:59:59Z", ds[0].DeadlineAt.Format("2006-01-02T15:04:05Z07:00"))

	_, err = execute(t, "deadlines", "remove", "G1", "--json=false", "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "deadlines", "list", "--json=false", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No deadlines.")
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.json")

	require.NoError(t, writeFileAtomic(path, []byte(`{"grant_id": "G1"}`)))
	require.NoError(t, writeFileAtomic(path, []byte(`{"grant_id": "G2"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"grant_id": "G2"}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")
	assert.Equal(t, "draft.json", entries[0].Name())

	// A directory that does not exist fails without creating anything.
	err = writeFileAtomic(filepath.Join(dir, "missing", "draft.json"), []byte("{}"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}

func TestHashSecretCommand(t *testing.T) {
	out, err := execute(t, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "$2a$")
}
