package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8000" || cfg.Chunking.Size != 2500 || cfg.Chunking.Overlap != 150 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Embedder.Dimensions != 1536 {
		t.Fatalf("dims = %d", cfg.Embedder.Dimensions)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	blob := []byte(`
server:
  addr: ":9999"
pinecone:
  host: https://idx.example.pinecone.io
embedder:
  model: from-yaml
`)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EMBEDDER_MODEL", "from-env")
	t.Setenv("PINECONE_API_KEY", "pk")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Pinecone.Host != "https://idx.example.pinecone.io" {
		t.Errorf("host = %q", cfg.Pinecone.Host)
	}
	if cfg.Embedder.Model != "from-env" {
		t.Errorf("env override lost: %q", cfg.Embedder.Model)
	}
	if cfg.Pinecone.APIKey != "pk" {
		t.Errorf("api key = %q", cfg.Pinecone.APIKey)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}
