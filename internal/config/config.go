package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Database  DatabaseConfig  `toml:"database"`
	Engine    EngineConfig    `toml:"engine"`
	Cache     CacheConfig     `toml:"cache"`
	Ingest    IngestConfig    `toml:"ingest"`
	Observer  ObserverConfig  `toml:"observer"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	APIKey     string `toml:"api_key"`
	RPM        int    `toml:"rpm"`
}

type DatabaseConfig struct {
	// Driver selects the store backend: "sqlite" or "postgres".
	Driver      string `toml:"driver"`
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type EngineConfig struct {
	// TopK is how many retrieved chunks feed each chat prompt.
	TopK int `toml:"top_k"`
	// UploadPath is where source backing files are kept.
	UploadPath string `toml:"upload_path"`
}

type CacheConfig struct {
	Enabled bool `toml:"enabled"`
	// TTLSeconds is the requested provider-side cache lifetime.
	TTLSeconds int `toml:"ttl_seconds"`
	// SweepSeconds is the interval between expired-entry sweeps. 0 disables
	// the sweeper.
	SweepSeconds int `toml:"sweep_seconds"`
}

type IngestConfig struct {
	Workers      int `toml:"workers"`
	QueueSize    int `toml:"queue_size"`
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		LLM:       LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
		Embedding: EmbeddingConfig{Provider: "gemini", Model: "gemini-embedding-001", Dimensions: 1536},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "loreforge.db"},
		Engine:    EngineConfig{TopK: 5, UploadPath: filepath.Join(home, "loreforge-uploads")},
		Cache:     CacheConfig{Enabled: true, TTLSeconds: 3600, SweepSeconds: 300},
		Ingest:    IngestConfig{Workers: 2, QueueSize: 32, ChunkSize: 1000, ChunkOverlap: 100},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "loreforge.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("LOREFORGE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LOREFORGE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOREFORGE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LOREFORGE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOREFORGE_POSTGRES_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("LOREFORGE_UPLOAD_PATH"); v != "" {
		cfg.Engine.UploadPath = v
	}
	if v := os.Getenv("LOREFORGE_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.Engine.TopK = k
		}
	}
	if v := os.Getenv("LOREFORGE_CACHE_ENABLED"); v == "false" || v == "0" {
		cfg.Cache.Enabled = false
	}
	if os.Getenv("LOREFORGE_OBSERVER_ENABLED") == "true" || os.Getenv("LOREFORGE_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	return cfg
}
