package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	mu.Lock()
	prev := logger
	logger = zap.New(core)
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	})
	return logs
}

func TestLogError(t *testing.T) {
	logs := observe(t)
	LogError(errors.New("boom"), "启动失败", zap.String("stage", "db"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "启动失败", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "db", fields["stage"])
}

func TestLogDatabaseOperation(t *testing.T) {
	logs := observe(t)
	LogDatabaseOperation("migrate", "games", time.Millisecond, nil)
	LogDatabaseOperation("migrate", "players", time.Millisecond, errors.New("locked"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "games", entries[0].ContextMap()["table"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "database_operation_failed", entries[1].Message)
	assert.Equal(t, "locked", entries[1].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}
