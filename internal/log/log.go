// Package log holds the process-wide zap logger.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.Mutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process logger. Debug selects zap's development config
// (console encoding, debug level); otherwise production JSON at info level.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = !debug

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("could not build zap logger: %w", err)
	}
	set(l)
	return nil
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

func ensure() {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
		sugar = base.Sugar()
	}
}

// GetZapLogger returns the structured logger, for libraries such as gorm that
// want a *zap.Logger or a std logger built from one.
func GetZapLogger() *zap.Logger {
	ensure()
	return base
}

// GetSugaredLogger returns the sugared logger handed to pipeline components.
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return sugar
}

// Named returns a child logger for one pipeline stage.
func Named(stage string) *zap.SugaredLogger {
	return GetSugaredLogger().Named(stage)
}

// Sync flushes buffered entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		_ = base.Sync()
	}
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Debugw(msg, keysAndValues...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Errorw(msg, keysAndValues...)
}
