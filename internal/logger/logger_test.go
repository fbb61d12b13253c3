package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, "info", "json"))

	l.Debug("hidden")
	l.Info("task created", "task_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task created", entry["msg"])
	assert.EqualValues(t, 7, entry["task_id"])
}

func TestInit_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	Init(Options{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	t.Cleanup(func() { _ = Close() })

	Info("purge finished", "purged", 3)
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "purge finished")
	assert.Contains(t, string(data), "purged=3")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	scoped := slog.New(NewHandler(&buf, "info", "text")).With("request_id", "abc")

	ctx := NewContext(context.Background(), scoped)
	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "request_id=abc")
	assert.NotNil(t, FromContext(context.Background()))
}
