package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNew_Levels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()
			log := NewWithWriter(tt.level, &bytes.Buffer{})
			assert.Equal(t, tt.want, log.Level())
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Warn("test message")

	entry := decodeLast(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		assert.Contains(t, entry, field)
	}
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "warning", entry["level"])
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("anime").
		WithRequestID("req-123").
		WithError(errors.New("boom")).
		WithFields(map[string]any{"page": 2}).
		Info("handled")

	entry := decodeLast(t, &buf)
	assert.Equal(t, "anime", entry["module"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 2, entry["page"])
}

func TestLogger_SetLevelAffectsDerived(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	child := log.WithModule("pagination")

	child.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.SetLevel("debug")
	child.Debugf("visible %d", 1)
	assert.Equal(t, "visible 1", decodeLast(t, &buf)["message"])
}

func TestLogger_ShutdownWithoutRemote(t *testing.T) {
	t.Parallel()
	log := NewWithWriter("info", &bytes.Buffer{})
	assert.NoError(t, log.Shutdown(t.Context()))
}
