package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joelkehle/intellipatent/internal/config"
	"github.com/joelkehle/intellipatent/internal/embed"
	"github.com/joelkehle/intellipatent/internal/httpapi"
	"github.com/joelkehle/intellipatent/internal/llm"
	"github.com/joelkehle/intellipatent/internal/pinecone"
	"github.com/joelkehle/intellipatent/internal/router"
	"github.com/joelkehle/intellipatent/internal/store"
	"github.com/joelkehle/intellipatent/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("patent-api dotenv_load_failed err=%q", err.Error())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing.Endpoint, "patent-api")
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("patent-api tracing_shutdown_failed err=%q", err.Error())
		}
	}()

	if _, statErr := os.Stat(cfg.Store.Path); statErr != nil {
		if cfg.Store.DownloadURL != "" {
			if err := store.EnsureDBFile(cfg.Store.Path, cfg.Store.DownloadURL); err != nil {
				log.Fatal(err)
			}
		} else {
			log.Printf("patent-api db_missing path=%s starting with empty store", cfg.Store.Path)
		}
	}

	metaStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer metaStore.Close()

	generator, err := llm.NewAnthropicGenerator(cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		log.Fatal(err)
	}
	embedder, err := embed.NewClient(embed.Config{
		BaseURL:    cfg.Embedder.BaseURL,
		APIKey:     cfg.Embedder.APIKey,
		Model:      cfg.Embedder.Model,
		Dimensions: cfg.Embedder.Dimensions,
		Timeout:    cfg.Embedder.Timeout(),
	})
	if err != nil {
		log.Fatal(err)
	}
	index, err := pinecone.NewClient(pinecone.Config{
		Host:         cfg.Pinecone.Host,
		InferenceURL: cfg.Pinecone.InferenceURL,
		APIKey:       cfg.Pinecone.APIKey,
		Timeout:      cfg.Pinecone.Timeout(),
	})
	if err != nil {
		log.Fatal(err)
	}

	engine := router.New(generator, embedder, index, index, metaStore)
	handler := httpapi.NewServer(engine, metaStore, index, cfg.Server.WebDir)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("patent-api listening addr=%s model=%s web_dir=%s", cfg.Server.Addr, generator.ModelName(), cfg.Server.WebDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Printf("patent-api stopped")
}
