// Package config loads and merges openmem's on-disk configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds every tunable the core subsystems read at startup.
type Config struct {
	ProjectRoot string `json:"-"`

	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Queue     QueueConfig     `json:"queue"`
	Compress  CompressConfig  `json:"compress"`
	Embedding EmbeddingConfig `json:"embedding"`
	Search    SearchConfig    `json:"search"`
	Context   ContextConfig   `json:"context"`
	Redact    RedactConfig    `json:"redact"`
	Daemon    DaemonConfig    `json:"daemon"`
}

type StorageConfig struct {
	// DatabasePath is relative to ProjectRoot unless absolute.
	DatabasePath string `json:"databasePath"`
	// UserDatabasePath optionally adds a second, user-scope database.
	UserDatabasePath string `json:"userDatabasePath,omitempty"`
}

type LoggingConfig struct {
	DebugMode bool `json:"debugMode"`
}

type QueueConfig struct {
	BatchSize          int    `json:"batchSize"`
	IntervalSeconds    int    `json:"intervalSeconds"`
	MaxRetries         int    `json:"maxRetries"`
	StaleClaimSeconds  int    `json:"staleClaimSeconds"`
	ConflictEnabled    bool   `json:"conflictEnabled"`
	SimilarityBandLow  float64 `json:"similarityBandLow"`
	SimilarityBandHigh float64 `json:"similarityBandHigh"`
	EntityExtraction   bool   `json:"entityExtraction"`
}

type CompressConfig struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	RatePerSecond  float64 `json:"ratePerSecond"`
	FallbackChars  int    `json:"fallbackChars"`
}

type EmbeddingConfig struct {
	Enabled        bool   `json:"enabled"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type SearchConfig struct {
	DefaultStrategy         string `json:"defaultStrategy"`
	RerankingEnabled        bool   `json:"rerankingEnabled"`
	RerankingMaxCandidates  int    `json:"rerankingMaxCandidates"`
	GraphEnabled            bool   `json:"graphEnabled"`
	GraphRadius             int    `json:"graphRadius"`
	RRFK                    int    `json:"rrfK"`
}

type ContextConfig struct {
	MaxIndexEntries              int `json:"maxIndexEntries"`
	ContextFullObservationCount  int `json:"contextFullObservationCount"`
	MaxContextTokens             int `json:"maxContextTokens"`
}

type RedactConfig struct {
	MinCaptureLength int      `json:"minCaptureLength"`
	ExtraPatterns    []string `json:"extraPatterns,omitempty"`
}

type DaemonConfig struct {
	Enabled              bool `json:"enabled"`
	LivenessTimeoutSeconds int `json:"livenessTimeoutSeconds"`
}

// DefaultConfig returns the built-in configuration before any file or
// environment overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".open-mem", "memory.db"),
		},
		Logging: LoggingConfig{DebugMode: false},
		Queue: QueueConfig{
			BatchSize:          20,
			IntervalSeconds:    30,
			MaxRetries:         5,
			StaleClaimSeconds:  300,
			ConflictEnabled:    true,
			SimilarityBandLow:  0.85,
			SimilarityBandHigh: 0.97,
			EntityExtraction:   true,
		},
		Compress: CompressConfig{
			Provider:       "genai",
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
			RatePerSecond:  2,
			FallbackChars:  600,
		},
		Embedding: EmbeddingConfig{
			Enabled:        true,
			Provider:       "genai",
			Model:          "text-embedding-004",
			Dimensions:     0, // 0 = probe from first returned vector
			TimeoutSeconds: 15,
		},
		Search: SearchConfig{
			DefaultStrategy:        "hybrid",
			RerankingEnabled:       false,
			RerankingMaxCandidates: 20,
			GraphEnabled:           true,
			GraphRadius:            2,
			RRFK:                   60,
		},
		Context: ContextConfig{
			MaxIndexEntries:             40,
			ContextFullObservationCount: 5,
			MaxContextTokens:            4000,
		},
		Redact: RedactConfig{
			MinCaptureLength: 8,
		},
		Daemon: DaemonConfig{
			Enabled:                false,
			LivenessTimeoutSeconds: 10,
		},
	}
}

// Load reads <projectRoot>/.open-mem/config.json if present, merges it over
// DefaultConfig(), then applies OPENMEM_* environment overrides. A missing
// config file is not an error.
func Load(projectRoot string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = projectRoot

	path := filepath.Join(projectRoot, ".open-mem", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ProjectRoot = projectRoot

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override a handful of
// high-value settings without editing config.json, mirroring the teacher's
// layered default/file/env precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENMEM_DEBUG"); v != "" {
		cfg.Logging.DebugMode = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OPENMEM_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("OPENMEM_QUEUE_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.IntervalSeconds = n
		}
	}
	if v := os.Getenv("OPENMEM_EMBEDDING_ENABLED"); v != "" {
		cfg.Embedding.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OPENMEM_SEARCH_STRATEGY"); v != "" {
		cfg.Search.DefaultStrategy = v
	}
}

// DatabasePath resolves Storage.DatabasePath relative to ProjectRoot.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabasePath) {
		return c.Storage.DatabasePath
	}
	return filepath.Join(c.ProjectRoot, c.Storage.DatabasePath)
}
