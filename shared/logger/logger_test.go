package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel []string
	}{
		{level: "debug", wantLevel: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevel: []string{"INFO", "WARN", "ERROR"}},
		{level: "warn", wantLevel: []string{"WARN", "ERROR"}},
		{level: "error", wantLevel: []string{"ERROR"}},
		{level: "bogus", wantLevel: []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			l, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e", slog.Int64("job_id", 7))

			var got []string
			for _, e := range decodeLines(t, output) {
				got = append(got, e["level"].(string))
			}
			assert.Equal(t, tt.wantLevel, got)
		})
	}
}

func TestNew_ServiceAndSource(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "json", Service: "booking-api", EnableSource: true, writer: output})
	require.NoError(t, err)

	l.Info("Job accepted", slog.Int64("job_id", 12))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "booking-api", entries[0]["service"])
	assert.Equal(t, float64(12), entries[0]["job_id"])
	assert.Contains(t, entries[0], "source")
}

func TestNew_Console(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "console", writer: output})
	require.NoError(t, err)

	l.Info("console test")
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "console test")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}

func TestNew_FileOutputError(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}

func TestLogger_GroupAndWith(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	l.With(slog.String("component", "dispatcher")).WithGroup("job").Info("sent", slog.Int64("id", 3))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "dispatcher", entries[0]["component"])
	assert.Equal(t, map[string]any{"id": float64(3)}, entries[0]["job"])
}
