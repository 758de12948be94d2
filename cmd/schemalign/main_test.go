package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/schemalign/internal/config"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after name are moved first",
			args:     []string{"Age_Years", "12", "--registry", "census"},
			expected: []string{"--registry", "census", "Age_Years", "12"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--output", "json", "Age_Years"},
			expected: []string{"--output", "json", "Age_Years"},
		},
		{
			name:     "positionals only returns unchanged",
			args:     []string{"Age_Years", "12", "14"},
			expected: []string{"Age_Years", "12", "14"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIngestMetadata(t *testing.T) {
	cfg := &config.Config{Ingest: config.IngestConfig{Region: "north", School: "s1", Activity: "census"}}

	got := ingestMetadata(cfg, "", "", "")
	if got.Region != "north" || got.School != "s1" || got.Activity != "census" {
		t.Errorf("config defaults not applied: %+v", got)
	}

	got = ingestMetadata(cfg, "south", "", "survey")
	if got.Region != "south" || got.School != "s1" || got.Activity != "survey" {
		t.Errorf("flag overrides not applied: %+v", got)
	}
	if !got.IngestionTime.IsZero() {
		t.Error("ingestion time should be left for the pipeline")
	}
}

func TestFlattenStatus(t *testing.T) {
	status := map[string]interface{}{
		"records":    float64(3),
		"registries": map[string]interface{}{"features": float64(7)},
		"watch": map[string]interface{}{
			"directories": []interface{}{"/a", "/b"},
		},
	}
	got := flattenStatus("", status)
	want := []string{
		"records: 3",
		"registries.features: 7",
		"watch.directories: [/a, /b]",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenStatus() = %v, want %v", got, want)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
registry:
  name: "census"
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Registry.Name != "census" {
		t.Errorf("registry = %q, want census", cfg.Registry.Name)
	}
}

func TestLoadConfig_missingExplicitPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}
