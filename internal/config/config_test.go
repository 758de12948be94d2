package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/records.db"
vector:
  snapshot_path: "./data/vectors/registry.bin"
watch:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "records.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantSnapshot := filepath.Join(dir, "data", "vectors", "registry.bin")
	if cfg.Vector.SnapshotPath != wantSnapshot {
		t.Errorf("snapshot_path = %s, want %s", cfg.Vector.SnapshotPath, wantSnapshot)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Registry.Name != "features" {
		t.Errorf("default registry: got %s", cfg.Registry.Name)
	}
	if cfg.Registry.Threshold != 0.8 {
		t.Errorf("default threshold: got %f", cfg.Registry.Threshold)
	}
	if cfg.Registry.PageSize != 100 || cfg.Registry.BatchSize != 100 {
		t.Errorf("default page/batch size: got %d/%d", cfg.Registry.PageSize, cfg.Registry.BatchSize)
	}
	if cfg.Registry.ViolationPolicy != "fail" || cfg.Registry.FailurePolicy != "abort" {
		t.Errorf("default policies: got %s/%s", cfg.Registry.ViolationPolicy, cfg.Registry.FailurePolicy)
	}
	if cfg.Embedding.Dimensions != 384 || cfg.Embedding.Provider != "onnx" {
		t.Errorf("default embedding: got %+v", cfg.Embedding)
	}
	if cfg.Vector.Backend != "memory" {
		t.Errorf("default vector backend: got %s", cfg.Vector.Backend)
	}
	if cfg.Oracle.Provider != "static" || cfg.Oracle.BaseURL != DefaultOracleBaseURL || cfg.Oracle.Model != DefaultOracleModel {
		t.Errorf("default oracle: got %+v", cfg.Oracle)
	}
	if cfg.Storage.MongoDatabase != "data_quality_service" || cfg.Storage.MongoCollection != "records" {
		t.Errorf("default mongo names: got %s/%s", cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	cfg := &Config{Registry: RegistryConfig{Threshold: 0.9, Name: "survey"}, Vector: VectorConfig{Backend: "qdrant"}}
	ApplyDefaults(cfg)
	if cfg.Registry.Threshold != 0.9 || cfg.Registry.Name != "survey" || cfg.Vector.Backend != "qdrant" {
		t.Errorf("explicit values overwritten: %+v %+v", cfg.Registry, cfg.Vector)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{
		Registry: RegistryConfig{Name: "features", Threshold: 0.8},
		Oracle:   OracleConfig{Provider: "static", Model: "from-yaml"},
	}
	err := ApplyEnv(cfg, map[string]string{
		"OPENAI_API_KEY":             "sk-test",
		"SCHEMALIGN_ORACLE_PROVIDER": "openai",
		"SCHEMALIGN_QDRANT_URL":      "http://qdrant:6333",
		"SCHEMALIGN_QDRANT_API_KEY":  "qk",
		"SCHEMALIGN_MONGODB_URL":     "mongodb://mongo:27017",
		"SCHEMALIGN_REDIS_URL":       "redis://redis:6379/0",
		"SCHEMALIGN_THRESHOLD":       "0.85",
		"SCHEMALIGN_PORT":            "9001",
		"SCHEMALIGN_DEBUG":           "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Oracle.APIKey != "sk-test" || cfg.Oracle.Provider != "openai" {
		t.Errorf("oracle: got %+v", cfg.Oracle)
	}
	if cfg.Oracle.Model != "from-yaml" {
		t.Errorf("unset variables should keep file values: model = %q", cfg.Oracle.Model)
	}
	if cfg.Vector.QdrantURL != "http://qdrant:6333" || cfg.Vector.QdrantAPIKey != "qk" {
		t.Errorf("vector: got %+v", cfg.Vector)
	}
	if cfg.Storage.MongoURL != "mongodb://mongo:27017" || cfg.Lock.RedisURL != "redis://redis:6379/0" {
		t.Errorf("storage/lock: got %+v %+v", cfg.Storage, cfg.Lock)
	}
	if cfg.Registry.Threshold != 0.85 || cfg.Registry.Name != "features" {
		t.Errorf("registry: got %+v", cfg.Registry)
	}
	if cfg.Server.Port != 9001 || !cfg.Debug {
		t.Errorf("server/debug: got %+v %v", cfg.Server, cfg.Debug)
	}
}

func TestApplyEnv_invalidValue(t *testing.T) {
	err := ApplyEnv(&Config{}, map[string]string{"SCHEMALIGN_PORT": "not-a-number"})
	if err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestLoad_envOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
registry:
  name: "from-file"
vector:
  qdrant_url: "http://file:6333"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCHEMALIGN_QDRANT_URL", "http://env:6333")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vector.QdrantURL != "http://env:6333" {
		t.Errorf("qdrant_url = %s", cfg.Vector.QdrantURL)
	}
	if cfg.Registry.Name != "from-file" {
		t.Errorf("registry name = %s", cfg.Registry.Name)
	}
}

func TestLoad_dotEnvInConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SCHEMALIGN_REDIS_URL=redis://dotenv:6379/1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Registers cleanup so the variable set by the .env file does not leak into other tests.
	t.Setenv("SCHEMALIGN_REDIS_URL", "")
	_ = os.Unsetenv("SCHEMALIGN_REDIS_URL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Lock.RedisURL != "redis://dotenv:6379/1" {
		t.Errorf("redis_url = %q", cfg.Lock.RedisURL)
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090, RequestTimeout: 2 * time.Minute},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Server.RequestTimeout != 120*time.Second {
		t.Errorf("loaded request timeout: got %v", loaded.Server.RequestTimeout)
	}
}
