// Package logger provides structured logging with zap.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	sessionKey contextKey = "session_id"
)

var (
	mu          sync.RWMutex
	globalLog   *zap.Logger
	globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stderr, stdout, or file path
}

// Init initializes the global logger.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
	}

	globalLevel.SetLevel(level)
	config.Level = globalLevel

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}
	config.OutputPaths = []string{output}
	config.ErrorOutputPaths = []string{"stderr"}

	l, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}

	mu.Lock()
	globalLog = l
	mu.Unlock()
	return nil
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	globalLevel.SetLevel(l)
}

// Replace swaps the global logger; tests use it with zaptest or zap.NewNop.
func Replace(l *zap.Logger) {
	mu.Lock()
	globalLog = l
	mu.Unlock()
}

// L returns the global logger. Until Init is called it is a no-op logger,
// so library code never writes to the terminal unasked.
func L() *zap.Logger {
	mu.RLock()
	l := globalLog
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Named returns the global logger scoped to a component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// WithSession attaches a session ID to the context logger.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := FromContext(ctx).With(zap.String("session_id", sessionID))
	ctx = context.WithValue(ctx, sessionKey, sessionID)
	return context.WithValue(ctx, loggerKey, l)
}

// SessionID returns the session ID stored in ctx, if any.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns a logger from context, or the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
			return l
		}
	}
	return L()
}
