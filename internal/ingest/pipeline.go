package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/joelkehle/intellipatent/internal/embed"
	"github.com/joelkehle/intellipatent/internal/llm"
	"github.com/joelkehle/intellipatent/internal/pinecone"
	"github.com/joelkehle/intellipatent/internal/store"
)

const (
	DefaultChunkSize    = 2500
	DefaultChunkOverlap = 150
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline wires the providers together. Documents and chunks are processed
// strictly sequentially; one failed chunk never halts the document, and one
// failed document never halts the run.
type Pipeline struct {
	gen      llm.Generator
	embedder embed.Embedder
	sparse   pinecone.SparseEncoder
	index    pinecone.Index
	meta     store.MetadataStore
	splitter textsplitter.RecursiveCharacter
}

// RunStats counts outcomes across one ingestion run. Failures are counted
// and reported at the end, not raised.
type RunStats struct {
	FilesFound         int
	FilesLoaded        int
	FilesLoadFailed    int
	FilesSkippedEmpty  int
	SummariesFailed    int
	ChunksCreated      int
	ChunksWritten      int
	ChunksEmbedFailed  int
	ChunksUpsertFailed int
	RecordsFailed      int
}

func NewPipeline(gen llm.Generator, embedder embed.Embedder, sparse pinecone.SparseEncoder, index pinecone.Index, meta store.MetadataStore, cfg Config) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return &Pipeline{
		gen:      gen,
		embedder: embedder,
		sparse:   sparse,
		index:    index,
		meta:     meta,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
	}
}

// Run ingests every .json document under dir.
func (p *Pipeline) Run(ctx context.Context, dir string) (RunStats, error) {
	stats := RunStats{}
	paths, err := ListPatentFiles(dir)
	if err != nil {
		return stats, err
	}
	stats.FilesFound = len(paths)
	log.Printf("ingest run_start dir=%s files=%d", dir, len(paths))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		doc, err := LoadDocument(path)
		if err != nil {
			stats.FilesLoadFailed++
			log.Printf("ingest load_failed file=%s err=%q", filepath.Base(path), err.Error())
			continue
		}
		stats.FilesLoaded++
		p.processDocument(ctx, ExtractFields(doc, i), &stats)
	}

	log.Printf("ingest run_complete files=%d loaded=%d skipped_empty=%d chunks_written=%d chunk_failures=%d",
		stats.FilesFound, stats.FilesLoaded, stats.FilesSkippedEmpty,
		stats.ChunksWritten, stats.ChunksEmbedFailed+stats.ChunksUpsertFailed+stats.RecordsFailed)
	return stats, nil
}

func (p *Pipeline) processDocument(ctx context.Context, fields Fields, stats *RunStats) {
	combined := fields.CombinedText()
	if combined == "" {
		stats.FilesSkippedEmpty++
		log.Printf("ingest skip_empty patent=%s", fields.PatentNumber)
		return
	}

	// One summary per document, shared by every chunk row.
	summary := llm.GenerateSummary(ctx, p.gen, fields.PatentNumber, combined)
	if summary == "" {
		stats.SummariesFailed++
	}

	chunks := p.SplitText(combined)
	stats.ChunksCreated += len(chunks)
	log.Printf("ingest chunked patent=%s chunks=%d chars=%d", fields.PatentNumber, len(chunks), len(combined))

	for idx, chunk := range chunks {
		if err := p.processChunk(ctx, fields, summary, idx, chunk, stats); err != nil {
			log.Printf("ingest chunk_failed patent=%s idx=%d err=%q", fields.PatentNumber, idx, err.Error())
			continue
		}
		stats.ChunksWritten++
	}
}

func (p *Pipeline) processChunk(ctx context.Context, fields Fields, summary string, idx int, chunk string, stats *RunStats) error {
	dense, err := p.embedder.EmbedText(ctx, chunk)
	if err != nil {
		stats.ChunksEmbedFailed++
		return fmt.Errorf("dense embedding: %w", err)
	}
	sparse, err := p.sparse.EmbedSparse(ctx, chunk, false)
	if err != nil {
		stats.ChunksEmbedFailed++
		return fmt.Errorf("sparse embedding: %w", err)
	}

	vectorID := ChunkID(fields.PatentNumber, idx)
	vec := pinecone.Vector{
		ID:           vectorID,
		Values:       dense,
		SparseValues: sparse,
		Metadata: map[string]string{
			"patent_number": fields.PatentNumber,
			"title":         fields.Title,
		},
	}
	if err := p.index.Upsert(ctx, []pinecone.Vector{vec}); err != nil {
		stats.ChunksUpsertFailed++
		return fmt.Errorf("upsert vector: %w", err)
	}

	rec := store.PatentRecord{
		VectorID:        vectorID,
		PatentNumber:    fields.PatentNumber,
		Title:           fields.Title,
		Description:     fields.Description,
		Abstract:        fields.Abstract,
		ClaimsText:      fields.ClaimsText,
		DetailedSummary: summary,
	}
	if err := p.meta.Insert(ctx, rec); err != nil {
		stats.RecordsFailed++
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

// SplitText exposes the configured splitter so the analyze diagnostic always
// counts with the exact settings ingestion would use.
func (p *Pipeline) SplitText(text string) []string {
	chunks, err := p.splitter.SplitText(text)
	if err != nil {
		// The recursive splitter only errors on impossible configurations;
		// treat the whole text as one chunk rather than dropping it.
		log.Printf("ingest split_failed err=%q", err.Error())
		return []string{text}
	}
	return chunks
}

// ChunkID builds the index key: patent number, chunk position, and a short
// random suffix so re-ingestion never collides with stale entries.
func ChunkID(patentNumber string, chunkIdx int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_chunk_%d_%s", patentNumber, chunkIdx, suffix)
}
