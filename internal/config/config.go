// Package config loads engine settings from an optional YAML file with
// environment-variable overrides. Secrets only ever come from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Embedder EmbedderConfig `yaml:"embedder"`
	LLM      LLMConfig      `yaml:"llm"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WebDir string `yaml:"web_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
	// DownloadURL is fetched when Path does not exist locally.
	DownloadURL string `yaml:"download_url"`
}

type PineconeConfig struct {
	Host         string `yaml:"host"`
	InferenceURL string `yaml:"inference_url"`
	APIKey       string `yaml:"-"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"-"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type LLMConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector address; tracing stays off when
	// empty.
	Endpoint string `yaml:"endpoint"`
}

func defaults() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8000", WebDir: "web"},
		Store:    StoreConfig{Path: "patent_data.db"},
		Embedder: EmbedderConfig{Model: "gemini-embedding-001", Dimensions: 1536, TimeoutSecs: 30},
		Chunking: ChunkingConfig{Size: 2500, Overlap: 150},
	}
}

// Load reads path when it exists, then applies environment overrides. A
// missing file is not an error; the defaults plus environment must be enough
// for a dev setup.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		blob, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(blob, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("INTELLIPATENT_ADDR", &cfg.Server.Addr)
	envStr("INTELLIPATENT_WEB_DIR", &cfg.Server.WebDir)
	envStr("SQLITE_DB_PATH", &cfg.Store.Path)
	envStr("SQLITE_DB_URL", &cfg.Store.DownloadURL)
	envStr("PINECONE_INDEX_HOST", &cfg.Pinecone.Host)
	envStr("PINECONE_INFERENCE_URL", &cfg.Pinecone.InferenceURL)
	envStr("PINECONE_API_KEY", &cfg.Pinecone.APIKey)
	envStr("EMBEDDER_BASE_URL", &cfg.Embedder.BaseURL)
	envStr("EMBEDDER_API_KEY", &cfg.Embedder.APIKey)
	envStr("EMBEDDER_MODEL", &cfg.Embedder.Model)
	envInt("EMBEDDER_DIMENSIONS", &cfg.Embedder.Dimensions)
	envStr("ANTHROPIC_API_KEY", &cfg.LLM.APIKey)
	envStr("INTELLIPATENT_LLM_MODEL", &cfg.LLM.Model)
	envInt("INTELLIPATENT_CHUNK_SIZE", &cfg.Chunking.Size)
	envInt("INTELLIPATENT_CHUNK_OVERLAP", &cfg.Chunking.Overlap)
	envStr("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
}

func envStr(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return
	}
	*dst = n
}

func (c PineconeConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c EmbedderConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}
