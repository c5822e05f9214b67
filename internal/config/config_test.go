package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected 1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Engine.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Engine.TopK)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTLSeconds != 3600 {
		t.Errorf("cache defaults wrong: %+v", cfg.Cache)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 100 {
		t.Errorf("ingest defaults wrong: %+v", cfg.Ingest)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[llm]
api_key = "file-key"

[engine]
top_k = 8

[ingest]
workers = 4
`), 0644)

	cfg := Load(path)
	if cfg.LLM.APIKey != "file-key" {
		t.Errorf("expected file-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Engine.TopK != 8 {
		t.Errorf("expected top_k 8, got %d", cfg.Engine.TopK)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Ingest.Workers)
	}
	// Defaults preserved
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("default should be preserved, got %s", cfg.LLM.Provider)
	}
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("default chunk size lost, got %d", cfg.Ingest.ChunkSize)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LOREFORGE_LLM_API_KEY", "env-key")
	t.Setenv("LOREFORGE_TOP_K", "12")
	t.Setenv("LOREFORGE_CACHE_ENABLED", "false")

	cfg := Load("/nonexistent/path.toml")
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Engine.TopK != 12 {
		t.Errorf("expected top_k 12, got %d", cfg.Engine.TopK)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by env")
	}
	// Fallback: embedding gets the LLM key
	if cfg.Embedding.APIKey != "env-key" {
		t.Errorf("expected embedding fallback to env-key, got %s", cfg.Embedding.APIKey)
	}
}

func TestPostgresEnvSelectsDriver(t *testing.T) {
	t.Setenv("LOREFORGE_POSTGRES_URL", "postgres://localhost/loreforge")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Database.PostgresURL != "postgres://localhost/loreforge" {
		t.Errorf("url = %s", cfg.Database.PostgresURL)
	}
}

func TestObserverPricingFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[observer]
enabled = true

[observer.pricing."gemini-2.5-flash"]
input = 1.0
output = 2.0
`), 0644)

	cfg := Load(path)
	if !cfg.Observer.Enabled {
		t.Error("observer should be enabled")
	}
	p, ok := cfg.Observer.Pricing["gemini-2.5-flash"]
	if !ok || p.Input != 1.0 || p.Output != 2.0 {
		t.Errorf("pricing = %+v", cfg.Observer.Pricing)
	}
}
