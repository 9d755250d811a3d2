// Package logging provides config-driven categorized logging for the search
// and indexing core. Categories map to the six components plus storage; each
// can be enabled/disabled and leveled independently. Output is structured via
// zap rather than hand-formatted text.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"
	CategorySearch    Category = "search"
	CategoryScope     Category = "scope"
	CategoryEmbedding Category = "embedding"
	CategoryIndex     Category = "index"
	CategoryTriage    Category = "triage"
	CategoryStorage   Category = "storage"
)

var allCategories = []Category{
	CategoryBoot, CategorySearch, CategoryScope, CategoryEmbedding,
	CategoryIndex, CategoryTriage, CategoryStorage,
}

// Config controls which categories emit logs and at what level.
type Config struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// Logger wraps a zap sugared logger scoped to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     *zap.Logger
	loggers  = make(map[Category]*Logger)
	cfg      Config
	cfgReady bool
)

func defaultConfig() Config {
	enabled := make(map[string]bool, len(allCategories))
	for _, c := range allCategories {
		enabled[string(c)] = true
	}
	return Config{DebugMode: true, Categories: enabled, Level: "info"}
}

// Initialize configures the logging package. Safe to call more than once;
// the last call wins. An empty Config falls back to sensible defaults.
func Initialize(c Config) error {
	mu.Lock()
	defer mu.Unlock()

	if c.Categories == nil {
		d := defaultConfig()
		if c.Level == "" {
			c.Level = d.Level
		}
		c.Categories = d.Categories
	}
	cfg = c
	cfgReady = true

	level := zapcore.InfoLevel
	switch c.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	zc := zap.NewProductionConfig()
	if !c.JSONFormat {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	built, err := zc.Build()
	if err != nil {
		return fmt.Errorf("logging: build zap logger: %w", err)
	}
	base = built
	loggers = make(map[Category]*Logger)
	return nil
}

func ensureInitialized() {
	mu.RLock()
	ready := cfgReady
	mu.RUnlock()
	if !ready {
		_ = Initialize(defaultConfig())
	}
}

// IsCategoryEnabled reports whether a category is configured to emit logs.
func IsCategoryEnabled(category Category) bool {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	if cfg.Categories == nil {
		return true
	}
	enabled, ok := cfg.Categories[string(category)]
	return !ok || enabled
}

// Get returns the Logger for a category, creating it on first use.
func Get(category Category) *Logger {
	ensureInitialized()

	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok = loggers[category]; ok {
		return l
	}
	l = &Logger{category: category, sugar: base.Sugar().With("category", string(category))}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if !IsCategoryEnabled(l.category) {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if !IsCategoryEnabled(l.category) {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if !IsCategoryEnabled(l.category) {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if !IsCategoryEnabled(l.category) {
		return
	}
	l.sugar.Errorf(format, args...)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	b := base
	mu.RUnlock()
	if b != nil {
		_ = b.Sync()
	}
}

// Timer measures and logs the duration of an operation on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation under a category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed duration at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

func per(category Category) func(string, ...interface{}) {
	return func(format string, args ...interface{}) { Get(category).Info(format, args...) }
}

func perDebug(category Category) func(string, ...interface{}) {
	return func(format string, args ...interface{}) { Get(category).Debug(format, args...) }
}

var (
	Boot           = per(CategoryBoot)
	BootDebug      = perDebug(CategoryBoot)
	Search         = per(CategorySearch)
	SearchDebug    = perDebug(CategorySearch)
	Scope          = per(CategoryScope)
	ScopeDebug     = perDebug(CategoryScope)
	Embedding      = per(CategoryEmbedding)
	EmbeddingDebug = perDebug(CategoryEmbedding)
	Index          = per(CategoryIndex)
	IndexDebug     = perDebug(CategoryIndex)
	Triage         = per(CategoryTriage)
	TriageDebug    = perDebug(CategoryTriage)
	Storage        = per(CategoryStorage)
	StorageDebug   = perDebug(CategoryStorage)
)
