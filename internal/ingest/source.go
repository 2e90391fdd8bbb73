// Package ingest reads patent JSON documents, chunks their abstract+claims
// text, and writes embeddings to Pinecone plus full metadata rows to SQLite.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document mirrors the patent JSON export format: language-tagged arrays for
// titles, abstracts, and descriptions, and a nested claims array. Only
// English-tagged entries are consumed.
type Document struct {
	PatentNumber string         `json:"patent_number"`
	Titles       []LocalizedRun `json:"titles"`
	Abstracts    []LocalizedRun `json:"abstracts"`
	Descriptions []LocalizedRun `json:"descriptions"`
	Claims       []ClaimSet     `json:"claims"`
}

type LocalizedRun struct {
	Lang            string `json:"lang"`
	Text            string `json:"text"`
	ParagraphMarkup string `json:"paragraph_markup"`
}

type ClaimSet struct {
	Claims []LocalizedRun `json:"claims"`
}

// Fields is the extracted English-language content of one document.
type Fields struct {
	PatentNumber string
	Title        string
	Abstract     string
	Description  string
	ClaimsText   string
}

// CombinedText is the chunking input: abstract and claims joined by a single
// space, trimmed. Empty means the document carries nothing worth indexing.
func (f Fields) CombinedText() string {
	return strings.TrimSpace(f.Abstract + " " + f.ClaimsText)
}

const englishTag = "EN"

func englishText(runs []LocalizedRun) string {
	for _, r := range runs {
		if r.Lang == englishTag {
			if r.Text != "" {
				return r.Text
			}
			return r.ParagraphMarkup
		}
	}
	return ""
}

// ExtractFields pulls the English fields out of a document. A missing patent
// number falls back to a positional placeholder so the chunk IDs stay unique.
func ExtractFields(doc Document, fileIndex int) Fields {
	number := strings.TrimSpace(doc.PatentNumber)
	if number == "" {
		number = fmt.Sprintf("patent_%d", fileIndex)
	}

	var claims []string
	if len(doc.Claims) > 0 {
		for _, c := range doc.Claims[0].Claims {
			if c.Lang == englishTag && c.ParagraphMarkup != "" {
				claims = append(claims, c.ParagraphMarkup)
			}
		}
	}

	return Fields{
		PatentNumber: number,
		Title:        englishText(doc.Titles),
		Abstract:     englishText(doc.Abstracts),
		Description:  englishText(doc.Descriptions),
		ClaimsText:   strings.Join(claims, " "),
	}
}

// ListPatentFiles returns the .json files under dir in a stable order.
func ListPatentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read patent dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func LoadDocument(path string) (Document, error) {
	var doc Document
	blob, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}
