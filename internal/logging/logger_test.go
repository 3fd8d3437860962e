package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func capture(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := current()
	set(zap.New(core))
	t.Cleanup(func() { set(prev) })
	return logs
}

func TestNamedLoggerCarriesComponent(t *testing.T) {
	logs := capture(t)

	Named("engine").Info("armed", String("date", "2026-10-17"), Duration("delay", 5*time.Minute))
	Warn("cancel failed", Err(assert.AnError))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "engine", entries[0].LoggerName)
	assert.Equal(t, "2026-10-17", entries[0].ContextMap()["date"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestStdLoggerTrimsNewline(t *testing.T) {
	logs := capture(t)

	StdLogger().Print("http: TLS handshake error")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "http: TLS handshake error", logs.All()[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestBuildFallsBackToInfo(t *testing.T) {
	l, err := build(Config{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	l, err = build(Config{Level: "DEBUG", JSON: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
