package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/tmc/langchaingo/textsplitter"
)

// AnalyzeReport recomputes chunk counts without writing anything. It exists
// because past runs produced fewer chunks than files; the report surfaces
// actual vs. expected so the discrepancy can be inspected, it does not assert
// an invariant.
type AnalyzeReport struct {
	FilesFound        int
	FilesLoadFailed   int
	ExpectedChunks    int
	ZeroChunkFiles    []SkippedFile
	ChunkDistribution map[int]int
	LongestDocument   string
	LongestDocChars   int
}

type SkippedFile struct {
	File         string
	PatentNumber string
	Reason       string
}

// Analyze walks dir with the same extraction and splitting logic the
// pipeline uses and tallies what ingestion would produce.
func Analyze(dir string, cfg Config) (AnalyzeReport, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)

	report := AnalyzeReport{ChunkDistribution: map[int]int{}}
	paths, err := ListPatentFiles(dir)
	if err != nil {
		return report, err
	}
	report.FilesFound = len(paths)

	for i, path := range paths {
		name := filepath.Base(path)
		doc, err := LoadDocument(path)
		if err != nil {
			report.FilesLoadFailed++
			report.ZeroChunkFiles = append(report.ZeroChunkFiles, SkippedFile{
				File: name, Reason: fmt.Sprintf("load failed: %v", err),
			})
			continue
		}
		fields := ExtractFields(doc, i)
		combined := fields.CombinedText()
		if combined == "" {
			report.ZeroChunkFiles = append(report.ZeroChunkFiles, SkippedFile{
				File:         name,
				PatentNumber: fields.PatentNumber,
				Reason:       "empty content after combining abstract + claims",
			})
			continue
		}
		chunks, err := splitter.SplitText(combined)
		if err != nil {
			chunks = []string{combined}
		}
		report.ExpectedChunks += len(chunks)
		report.ChunkDistribution[len(chunks)]++
		if len(combined) > report.LongestDocChars {
			report.LongestDocChars = len(combined)
			report.LongestDocument = fields.PatentNumber
		}
	}
	return report, nil
}

// Write prints the report, including the actual-vs-expected delta when the
// caller knows how many chunks a prior run actually produced (pass a
// negative actual to skip the comparison).
func (r AnalyzeReport) Write(w io.Writer, actualChunks int) {
	fmt.Fprintf(w, "files found:          %d\n", r.FilesFound)
	fmt.Fprintf(w, "files failed to load: %d\n", r.FilesLoadFailed)
	fmt.Fprintf(w, "expected chunks:      %d\n", r.ExpectedChunks)
	if actualChunks >= 0 {
		fmt.Fprintf(w, "actual chunks:        %d (delta %+d)\n", actualChunks, actualChunks-r.ExpectedChunks)
	}
	if r.LongestDocument != "" {
		fmt.Fprintf(w, "longest document:     %s (%d chars)\n", r.LongestDocument, r.LongestDocChars)
	}

	counts := make([]int, 0, len(r.ChunkDistribution))
	for n := range r.ChunkDistribution {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	fmt.Fprintln(w, "chunk distribution:")
	for _, n := range counts {
		fmt.Fprintf(w, "  %d chunk(s): %d file(s)\n", n, r.ChunkDistribution[n])
	}

	if len(r.ZeroChunkFiles) > 0 {
		fmt.Fprintf(w, "files producing no chunks (%d):\n", len(r.ZeroChunkFiles))
		for _, s := range r.ZeroChunkFiles {
			fmt.Fprintf(w, "  %s (%s): %s\n", s.File, s.PatentNumber, s.Reason)
		}
	}
}
