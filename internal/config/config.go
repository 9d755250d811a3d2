// Package config loads and validates configuration for the search and
// indexing core: storage paths, index roots, batch sizes, embedder
// selection, and determinism defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"agentmail-search/internal/logging"
)

// Config holds all core configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Index       IndexConfig       `yaml:"index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Logging     LoggingConfig     `yaml:"logging"`
	Determinism DeterminismConfig `yaml:"determinism"`
	Triage      TriageConfig      `yaml:"triage"`
}

// StorageConfig configures the relational store.
type StorageConfig struct {
	Path           string `yaml:"path"`
	BusyTimeout    string `yaml:"busy_timeout"`
	JournalMode    string `yaml:"journal_mode"`
	Synchronous    string `yaml:"synchronous"`
	VecExtension   bool   `yaml:"vec_extension"`
	ReconstructDir string `yaml:"reconstruct_dir"`
}

// IndexConfig configures the index lifecycle.
type IndexConfig struct {
	Root                  string `yaml:"root"`
	BatchSize             int    `yaml:"batch_size"`
	CountDriftSevereRatio float64 `yaml:"count_drift_severe_ratio"`
}

// EmbeddingConfig configures the embedder registry and providers.
type EmbeddingConfig struct {
	PreferredFast    string `yaml:"preferred_fast"`
	PreferredQuality string `yaml:"preferred_quality"`
	AllowFallback    bool   `yaml:"allow_fallback"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`

	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DeterminismConfig configures the default run context.
type DeterminismConfig struct {
	ClockMode string `yaml:"clock_mode"`
	Seed      uint32 `yaml:"seed"`
	EpochBase int64  `yaml:"epoch_base"`
}

// TriageConfig configures flake-triage artifact handling.
type TriageConfig struct {
	ArtifactRoot string `yaml:"artifact_root"`
	SeedCorpus   []uint32 `yaml:"seed_corpus"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:           "data/agentmail.db",
			BusyTimeout:    "60s",
			JournalMode:    "WAL",
			Synchronous:    "NORMAL",
			VecExtension:   true,
			ReconstructDir: "data/archive",
		},
		Index: IndexConfig{
			Root:                  "data/index",
			BatchSize:             50,
			CountDriftSevereRatio: 0.10,
		},
		Embedding: EmbeddingConfig{
			PreferredFast:     "",
			PreferredQuality:  "",
			AllowFallback:     true,
			OllamaEndpoint:    "http://localhost:11434",
			OllamaModel:       "embeddinggemma",
			GenAIModel:        "gemini-embedding-001",
			TaskType:          "SEMANTIC_SIMILARITY",
			RequestsPerSecond: 5,
		},
		Logging: LoggingConfig{
			DebugMode: true,
			Level:     "info",
		},
		Determinism: DeterminismConfig{
			ClockMode: "wall",
			EpochBase: 0,
		},
		Triage: TriageConfig{
			ArtifactRoot: "data/triage",
			SeedCorpus:   []uint32{1, 7, 13, 42, 101, 1009, 65537, 2147483647},
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded from %s", path)
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENTMAIL_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("AGENTMAIL_INDEX_ROOT"); v != "" {
		c.Index.Root = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
}

// BusyTimeoutDuration parses the configured busy timeout, defaulting to 60s.
func (c *Config) BusyTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Storage.BusyTimeout)
	if err != nil || d < 60*time.Second {
		return 60 * time.Second
	}
	return d
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("config: index.batch_size must be >= 1")
	}
	if c.Index.CountDriftSevereRatio <= 0 || c.Index.CountDriftSevereRatio > 1 {
		return fmt.Errorf("config: index.count_drift_severe_ratio must be in (0, 1]")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("config: storage.path is required")
	}
	return nil
}
