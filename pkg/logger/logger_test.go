package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func restoreLogger(t *testing.T) {
	prev, prevSugar := Log, Sugar
	t.Cleanup(func() { Log, Sugar = prev, prevSugar })
}

func TestInit_WritesJSONToFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init(&Config{Level: "warn", Format: "json", Output: "file", FilePath: path}))
	Info("queue joined")
	Warn("ring timeout", zap.String("call_id", "call_1"))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "queue joined")
	assert.Contains(t, string(data), `"call_id":"call_1"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init(&Config{Level: "chatty", Format: "json", Output: "file", FilePath: path}))

	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))
}

func TestFromContext_AddsRequestAndConnIDs(t *testing.T) {
	restoreLogger(t)
	core, logs := observer.New(zapcore.DebugLevel)
	Log = zap.New(core)

	ctx := WithConnID(WithRequestID(context.Background(), "req-1"), "conn-1")
	FromContext(ctx).Info("match found")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "conn-1", fields["conn_id"])
}
