package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-sea-battle/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(in), in)
	}
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "json").With("component", "test")

	ctx := logger.WithConnID(logger.WithSessionID(context.Background(), 7), "abc")
	log.InfoContext(ctx, "hello")
	log.DebugContext(ctx, "hidden")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "hello", record["msg"])
	assert.EqualValues(t, 7, record["session_id"])
	assert.Equal(t, "abc", record["conn_id"])
	assert.Equal(t, "test", record["component"])
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := logger.New("debug", "text", path)
	require.NoError(t, err)
	log.Debug("written")

	_, err = logger.New("info", "text", filepath.Join(t.TempDir(), "missing", "app.log"))
	assert.Error(t, err)
}
