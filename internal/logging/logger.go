// Package logging provides config-driven categorized logging for patternpilot,
// built on zap. Each subsystem logs through a named category that can be
// enabled or disabled from config; the level can be changed at runtime, which
// the config watcher uses for live reload.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"
	CategoryGateway      Category = "gateway"
	CategoryNotify       Category = "notify"
	CategoryPatterns     Category = "patterns"
	CategoryRecording    Category = "recording"
	CategoryExecution    Category = "execution"
	CategoryConversation Category = "conversation"
	CategoryConfig       Category = "config"
)

// Config controls the logging subsystem. Categories maps category name to
// enabled; an empty map enables everything.
type Config struct {
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	categories map[string]bool
)

// Initialize builds the root logger from cfg. Called once at startup; safe to
// call again (tests, config reload) — later calls replace the root.
func Initialize(cfg Config) error {
	lvl, err := zapcore.ParseLevel(normalizeLevel(cfg.Level))
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(lvl)
	root = zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	categories = cfg.Categories
	return nil
}

func normalizeLevel(s string) string {
	switch s {
	case "", "warning":
		return "warn"
	}
	return s
}

// For returns the logger for a category. Disabled categories get a no-op
// logger so call sites never have to check.
func For(cat Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if len(categories) > 0 {
		if enabled, ok := categories[string(cat)]; ok && !enabled {
			return zap.NewNop()
		}
	}
	return root.Named(string(cat))
}

// SetLevel changes the active level at runtime. Unknown levels are ignored.
func SetLevel(s string) {
	if lvl, err := zapcore.ParseLevel(normalizeLevel(s)); err == nil {
		level.SetLevel(lvl)
	}
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
