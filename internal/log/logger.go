// Package log provides structured logging for hltest using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with hltest-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance. It is a no-op until Init is called.
	L    = NewNop()
	once sync.Once
)

// Config selects the logger flavor.
type Config struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		L = New(cfg)
	})
}

// New creates a new Logger instance. Output always goes to stderr; stdout
// belongs to the color stream.
func New(cfg Config) *Logger {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	if cfg.Level != "" {
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	// Shorter timestamps
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a child logger for a component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

// Field helpers for common patterns.

// Worker creates a worker generation field.
func Worker(id string) zap.Field {
	return zap.String("worker", id)
}

// Pos creates a document position field.
func Pos(pos int) zap.Field {
	return zap.Int("pos", pos)
}

// Len creates a length field.
func Len(n int) zap.Field {
	return zap.Int("len", n)
}
