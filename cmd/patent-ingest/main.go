package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joelkehle/intellipatent/internal/config"
	"github.com/joelkehle/intellipatent/internal/embed"
	"github.com/joelkehle/intellipatent/internal/ingest"
	"github.com/joelkehle/intellipatent/internal/llm"
	"github.com/joelkehle/intellipatent/internal/pinecone"
	"github.com/joelkehle/intellipatent/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("patent-ingest dotenv_load_failed err=%q", err.Error())
	}

	var configPath string
	rootCmd := &cobra.Command{
		Use:   "patent-ingest",
		Short: "Ingest patent JSON documents into Pinecone and SQLite",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
	rootCmd.AddCommand(newIngestCommand(&configPath))
	rootCmd.AddCommand(newAnalyzeCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newIngestCommand(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process all patent JSON files in a directory",
		Long:  "Extracts English fields, summarizes and chunks each document, and writes hybrid vectors to Pinecone plus metadata rows to SQLite.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			metaStore, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer metaStore.Close()

			generator, err := llm.NewAnthropicGenerator(cfg.LLM.APIKey, cfg.LLM.Model)
			if err != nil {
				return err
			}
			embedder, err := embed.NewClient(embed.Config{
				BaseURL:    cfg.Embedder.BaseURL,
				APIKey:     cfg.Embedder.APIKey,
				Model:      cfg.Embedder.Model,
				Dimensions: cfg.Embedder.Dimensions,
				Timeout:    cfg.Embedder.Timeout(),
			})
			if err != nil {
				return err
			}
			index, err := pinecone.NewClient(pinecone.Config{
				Host:         cfg.Pinecone.Host,
				InferenceURL: cfg.Pinecone.InferenceURL,
				APIKey:       cfg.Pinecone.APIKey,
				Timeout:      cfg.Pinecone.Timeout(),
			})
			if err != nil {
				return err
			}

			pipeline := ingest.NewPipeline(generator, embedder, index, index, metaStore, ingest.Config{
				ChunkSize:    cfg.Chunking.Size,
				ChunkOverlap: cfg.Chunking.Overlap,
			})
			stats, err := pipeline.Run(cmd.Context(), dir)
			if err != nil {
				return err
			}
			log.Printf("patent-ingest done files=%d written=%d skipped_empty=%d load_failed=%d embed_failed=%d upsert_failed=%d record_failed=%d",
				stats.FilesFound, stats.ChunksWritten, stats.FilesSkippedEmpty,
				stats.FilesLoadFailed, stats.ChunksEmbedFailed, stats.ChunksUpsertFailed, stats.RecordsFailed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "patent_jsons", "Directory of patent JSON files")
	return cmd
}

func newAnalyzeCommand(configPath *string) *cobra.Command {
	var dir string
	var actual int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recompute expected chunk counts without writing anything",
		Long:  "Walks the patent directory with the same extraction and chunking logic as ingest and reports expected chunk counts, skip reasons, and the delta against an observed chunk total.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			report, err := ingest.Analyze(dir, ingest.Config{
				ChunkSize:    cfg.Chunking.Size,
				ChunkOverlap: cfg.Chunking.Overlap,
			})
			if err != nil {
				return err
			}
			report.Write(cmd.OutOrStdout(), actual)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "patent_jsons", "Directory of patent JSON files")
	cmd.Flags().IntVar(&actual, "actual", -1, "Observed chunk count from a prior run (-1 to skip the comparison)")
	return cmd
}
