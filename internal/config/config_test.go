package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Mongo.URI != DefaultMongoURI {
		t.Errorf("mongo uri = %q, want %q", cfg.Mongo.URI, DefaultMongoURI)
	}
	if cfg.Tools.TimeoutSeconds != DefaultToolTimeout {
		t.Errorf("tool timeout = %d, want %d", cfg.Tools.TimeoutSeconds, DefaultToolTimeout)
	}
	if !cfg.Sched.Enabled {
		t.Error("scheduler should default to enabled")
	}
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadConfigFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"port": 9999, "tokens": {"tok-1": "tenant-a"}},
		"mongo": {"uri": "mongodb://db:27017", "database": "fin"},
		"provider": {"type": "openai", "apiKey": "sk-test"},
		"market": {"newsApiKey": "nk"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Tokens["tok-1"] != "tenant-a" {
		t.Errorf("tokens = %v, want tok-1 -> tenant-a", cfg.Server.Tokens)
	}
	if cfg.Mongo.Database != "fin" {
		t.Errorf("database = %q, want fin", cfg.Mongo.Database)
	}
	if cfg.Provider.Type != "openai" {
		t.Errorf("provider type = %q, want openai", cfg.Provider.Type)
	}
	// Unset fields fall back to defaults.
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("model = %q, want default", cfg.Provider.Model)
	}
	if cfg.Tools.MaxWorkers != DefaultToolWorkers {
		t.Errorf("maxWorkers = %d, want default", cfg.Tools.MaxWorkers)
	}
}

func TestLoadConfigFrom_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	t.Setenv("PENNYWISE_API_KEY", "pk-env")
	t.Setenv("PENNYWISE_MONGO_URI", "mongodb://env:27017")
	t.Setenv("PENNYWISE_PORT", "7777")
	t.Setenv("PENNYWISE_TOOL_TIMEOUT", "5")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Provider.APIKey != "pk-env" {
		t.Errorf("apiKey = %q, want pk-env", cfg.Provider.APIKey)
	}
	if cfg.Mongo.URI != "mongodb://env:27017" {
		t.Errorf("mongo uri = %q, want env override", cfg.Mongo.URI)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Tools.TimeoutSeconds != 5 {
		t.Errorf("tool timeout = %d, want 5", cfg.Tools.TimeoutSeconds)
	}
}

func TestLoadConfigFrom_OpenAIKeySetsProviderType(t *testing.T) {
	t.Setenv("PENNYWISE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Provider.Type != "openai" {
		t.Errorf("provider type = %q, want openai", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "sk-openai" {
		t.Errorf("apiKey = %q, want sk-openai", cfg.Provider.APIKey)
	}
}
