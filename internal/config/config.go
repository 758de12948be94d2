// Package config provides configuration loading and structs for the schemalign server and CLI.
//
// Settings come from a YAML file first. Environment variables (after loading a .env file from the
// working directory and from the config directory) override individual fields, which is how
// secrets such as API keys are supplied.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" env:"SCHEMALIGN_DEBUG"`
	Server    ServerConfig    `yaml:"server"`
	Registry  RegistryConfig  `yaml:"registry"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Storage   StorageConfig   `yaml:"storage"`
	Lock      LockConfig      `yaml:"lock"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host" env:"SCHEMALIGN_HOST"`
	Port           int           `yaml:"port" env:"SCHEMALIGN_PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// RegistryConfig holds canonicalization settings.
type RegistryConfig struct {
	// Name is the registry used when a request does not name one.
	Name      string  `yaml:"name" env:"SCHEMALIGN_REGISTRY"`
	Threshold float64 `yaml:"threshold" env:"SCHEMALIGN_THRESHOLD"`
	PageSize  int     `yaml:"page_size"`
	BatchSize int     `yaml:"batch_size"`
	// SampleSize caps the column values passed to the oracle.
	SampleSize int `yaml:"sample_size"`
	// ViolationPolicy is fail, no_match, or retry.
	ViolationPolicy string `yaml:"violation_policy" env:"SCHEMALIGN_VIOLATION_POLICY"`
	// FailurePolicy is abort or skip.
	FailurePolicy string `yaml:"failure_policy" env:"SCHEMALIGN_FAILURE_POLICY"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is onnx, openai, or mock.
	Provider   string        `yaml:"provider" env:"SCHEMALIGN_EMBEDDING_PROVIDER"`
	ModelPath  string        `yaml:"model_path"`
	OutputName string        `yaml:"output_name"`
	Dimensions int           `yaml:"dimensions" env:"SCHEMALIGN_EMBEDDING_DIMENSIONS"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	BaseURL    string        `yaml:"base_url" env:"SCHEMALIGN_EMBEDDING_URL"`
	APIKey     string        `yaml:"api_key,omitempty" env:"SCHEMALIGN_EMBEDDING_API_KEY"`
	Model      string        `yaml:"model" env:"SCHEMALIGN_EMBEDDING_MODEL"`
	Timeout    time.Duration `yaml:"timeout"`
}

// VectorConfig holds vector store settings.
type VectorConfig struct {
	// Backend is memory or qdrant.
	Backend      string        `yaml:"backend" env:"SCHEMALIGN_VECTOR_BACKEND"`
	SnapshotPath string        `yaml:"snapshot_path"`
	QdrantURL    string        `yaml:"qdrant_url" env:"SCHEMALIGN_QDRANT_URL"`
	QdrantAPIKey string        `yaml:"qdrant_api_key,omitempty" env:"SCHEMALIGN_QDRANT_API_KEY"`
	Timeout      time.Duration `yaml:"timeout"`
}

// OracleConfig holds language-model oracle settings.
type OracleConfig struct {
	// Provider is static or openai.
	Provider          string        `yaml:"provider" env:"SCHEMALIGN_ORACLE_PROVIDER"`
	BaseURL           string        `yaml:"base_url" env:"SCHEMALIGN_ORACLE_URL"`
	APIKey            string        `yaml:"api_key,omitempty" env:"OPENAI_API_KEY"`
	Model             string        `yaml:"model" env:"SCHEMALIGN_ORACLE_MODEL"`
	MaxValues         int           `yaml:"max_values"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// StorageConfig holds record persistence settings. MongoURL is optional; when set, records are
// also written to MongoDB.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path" env:"SCHEMALIGN_DATABASE_PATH"`
	MongoURL        string `yaml:"mongo_url,omitempty" env:"SCHEMALIGN_MONGODB_URL"`
	MongoDatabase   string `yaml:"mongo_database" env:"SCHEMALIGN_MONGODB_DATABASE"`
	MongoCollection string `yaml:"mongo_collection" env:"SCHEMALIGN_MONGODB_COLLECTION"`
}

// LockConfig holds registry lock settings. Without RedisURL the lock is in-process only.
type LockConfig struct {
	RedisURL string        `yaml:"redis_url,omitempty" env:"SCHEMALIGN_REDIS_URL"`
	TTL      time.Duration `yaml:"ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IngestConfig holds ingestion settings. Region, School and Activity tag files ingested by the
// watcher and by the CLI when no flags override them.
type IngestConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Region      string `yaml:"region"`
	School      string `yaml:"school"`
	Activity    string `yaml:"activity"`
}

// WatchConfig holds inbox watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides, expands paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	loadDotEnv(configDir)
	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Vector.SnapshotPath = expandPath(cfg.Vector.SnapshotPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config built from defaults and the environment only, for running without a
// config file.
func Default() (*Config, error) {
	var cfg Config
	loadDotEnv("")
	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyEnv overrides cfg fields from environment variables. A nil environ reads the process
// environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var opts env.Options
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from the working directory and from dir. Variables already set win.
func loadDotEnv(dir string) {
	_ = godotenv.Load()
	if dir == "" || dir == "." {
		return
	}
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err == nil {
		_ = godotenv.Load(p)
	}
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
