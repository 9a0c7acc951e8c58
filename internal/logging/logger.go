// Package logging provides config-driven, categorized, file-based logging.
// Logs are written to .open-mem/logs/ with one file per category. Logging
// is controlled by the debug flag passed to Initialize — when false, no
// log files are opened and category loggers are no-ops.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one logging subsystem.
type Category string

const (
	CategoryStore     Category = "store"
	CategoryQueue     Category = "queue"
	CategoryCompress  Category = "compress"
	CategorySearch    Category = "search"
	CategoryContext   Category = "context"
	CategoryEmbedding Category = "embedding"
	CategoryRedact    Category = "redact"
	CategoryGraph     Category = "graph"
	CategoryEvents    Category = "events"
	CategoryCLI       Category = "cli"
	CategoryHost      Category = "host"
)

// Logger wraps a *zap.SugaredLogger for one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	enabled  bool
}

var (
	mu          sync.RWMutex
	loggers     = make(map[Category]*Logger)
	logsDir     string
	debugMode   bool
	initialized bool
)

// Initialize sets up the logging directory for the given workspace root and
// enables per-category file output when debugMode is true. Safe to call
// more than once (e.g. after a config hot-reload); subsequent calls replace
// the cached loggers.
func Initialize(workspaceRoot string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	debugMode = debug
	loggers = make(map[Category]*Logger)
	initialized = true

	if !debug {
		logsDir = ""
		return nil
	}

	logsDir = filepath.Join(workspaceRoot, ".open-mem", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// Get returns (or lazily creates) the logger for category. Before
// Initialize is called, Get returns a no-op logger so packages may log
// unconditionally during early startup.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category, enabled: debugMode && logsDir != ""}
	if l.enabled {
		date := time.Now().Format("2006-01-02")
		path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
		core, err := fileCore(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: could not open %s: %v\n", path, err)
			l.enabled = false
		} else {
			l.sugar = zap.New(core).Sugar().With("category", string(category))
		}
	}
	loggers[category] = l
	return l
}

func fileCore(path string) (zapcore.Core, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	return zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.DebugLevel), nil
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(zapcore.DebugLevel, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(zapcore.InfoLevel, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(zapcore.WarnLevel, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(zapcore.ErrorLevel, format, args...) }

func (l *Logger) log(level zapcore.Level, format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case zapcore.DebugLevel:
		l.sugar.Debug(msg)
	case zapcore.InfoLevel:
		l.sugar.Info(msg)
	case zapcore.WarnLevel:
		l.sugar.Warn(msg)
	default:
		l.sugar.Error(msg)
	}
}

// Timer measures and logs the duration of a named operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation under category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the elapsed duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning instead of a debug line when elapsed
// exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v, exceeding threshold %v", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// IsDebugMode reports whether file-backed category logging is active.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugMode
}
