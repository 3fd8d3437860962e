// Package logging holds the process-wide zap logger. Components take a named
// child with Named; one-off call sites use the package helpers.
package logging

import (
	"log"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
	once   sync.Once
)

// Config holds logging configuration
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // colored console output with stack traces on warn
	JSON        bool   // JSON lines instead of console text
}

// DefaultConfig logs info and above as console text.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Init builds the global logger. Only the first call has an effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *zap.Logger
		l, err = build(cfg)
		if err == nil {
			set(l)
		}
	})
	return err
}

func build(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	switch {
	case cfg.Development:
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case !cfg.JSON:
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build(zap.AddCallerSkip(1))
}

func set(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// InitDefault falls back to DefaultConfig when Init was never called or failed.
func InitDefault() {
	mu.RLock()
	ready := logger != nil
	mu.RUnlock()
	if ready {
		return
	}
	if err := Init(DefaultConfig()); err == nil && current() != nil {
		return
	}
	if l, err := build(DefaultConfig()); err == nil {
		set(l)
		return
	}
	set(zap.NewNop())
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// L returns the global logger
func L() *zap.Logger {
	InitDefault()
	return current()
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.Logger {
	return L().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

// Sync flushes buffered entries
func Sync() error {
	if l := current(); l != nil {
		return l.Sync()
	}
	return nil
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Field constructors, so callers need not import zap for one line.

func String(key, val string) zap.Field                 { return zap.String(key, val) }
func Int(key string, val int) zap.Field                { return zap.Int(key, val) }
func Bool(key string, val bool) zap.Field              { return zap.Bool(key, val) }
func Err(err error) zap.Field                          { return zap.Error(err) }
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) zap.Field         { return zap.Time(key, val) }

// errorWriter sends each line written by a std logger to Error.
type errorWriter struct{}

func (errorWriter) Write(p []byte) (int, error) {
	Error(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// StdLogger returns a *log.Logger for http.Server.ErrorLog.
func StdLogger() *log.Logger {
	return log.New(errorWriter{}, "", 0)
}
