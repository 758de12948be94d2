package config

import "time"

const (
	defaultDataDir = "/usr/local/var/schemalign/data"

	// DefaultOracleBaseURL and DefaultOracleModel point at an OpenAI-compatible endpoint serving
	// an instruction-tuned Llama model.
	DefaultOracleBaseURL = "https://api.featherless.ai/v1"
	DefaultOracleModel   = "meta-llama/Llama-3.3-70B-Instruct"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}

	if cfg.Registry.Name == "" {
		cfg.Registry.Name = "features"
	}
	if cfg.Registry.Threshold == 0 {
		cfg.Registry.Threshold = 0.8
	}
	if cfg.Registry.PageSize == 0 {
		cfg.Registry.PageSize = 100
	}
	if cfg.Registry.BatchSize == 0 {
		cfg.Registry.BatchSize = 100
	}
	if cfg.Registry.SampleSize == 0 {
		cfg.Registry.SampleSize = 20
	}
	if cfg.Registry.ViolationPolicy == "" {
		cfg.Registry.ViolationPolicy = "fail"
	}
	if cfg.Registry.FailurePolicy == "" {
		cfg.Registry.FailurePolicy = "abort"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = defaultDataDir + "/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.SnapshotPath == "" {
		cfg.Vector.SnapshotPath = defaultDataDir + "/vectors/registry.bin"
	}
	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = 30 * time.Second
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "static"
	}
	if cfg.Oracle.BaseURL == "" {
		cfg.Oracle.BaseURL = DefaultOracleBaseURL
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = DefaultOracleModel
	}
	if cfg.Oracle.MaxValues == 0 {
		cfg.Oracle.MaxValues = 20
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 60 * time.Second
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = defaultDataDir + "/db/records.db"
	}
	if cfg.Storage.MongoDatabase == "" {
		cfg.Storage.MongoDatabase = "data_quality_service"
	}
	if cfg.Storage.MongoCollection == "" {
		cfg.Storage.MongoCollection = "records"
	}

	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 30 * time.Second
	}
	if cfg.Lock.Timeout == 0 {
		cfg.Lock.Timeout = 2 * time.Minute
	}

	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
