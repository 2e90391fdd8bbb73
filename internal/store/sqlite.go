// Package store persists per-chunk patent metadata in SQLite, keyed by the
// same vector ID the Pinecone index uses.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// PatentRecord is one chunk's row. Re-ingestion replaces by vector ID; rows
// are never updated in place.
type PatentRecord struct {
	VectorID        string `db:"vector_id" json:"vector_id"`
	PatentNumber    string `db:"patent_number" json:"patent_number"`
	Title           string `db:"title" json:"title"`
	Description     string `db:"description" json:"description,omitempty"`
	Abstract        string `db:"abstract" json:"abstract,omitempty"`
	ClaimsText      string `db:"claims_text" json:"claims_text,omitempty"`
	DetailedSummary string `db:"detailed_summary" json:"detailed_summary"`
}

// MetadataStore is the capability the router and pipeline consume.
type MetadataStore interface {
	FetchByVectorIDs(ctx context.Context, ids []string) ([]PatentRecord, error)
	Insert(ctx context.Context, rec PatentRecord) error
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS patent_chunks (
	vector_id        TEXT PRIMARY KEY,
	patent_number    TEXT,
	title            TEXT,
	description      TEXT,
	abstract         TEXT,
	claims_text      TEXT,
	detailed_summary TEXT
);
`

type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// FetchByVectorIDs returns rows matching the given IDs. The heavy text
// columns stay out of search responses; IDs with no row are silently omitted.
func (s *SQLiteStore) FetchByVectorIDs(ctx context.Context, ids []string) ([]PatentRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT vector_id, patent_number, title, detailed_summary FROM patent_chunks WHERE vector_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build fetch query: %w", err)
	}
	var records []PatentRecord
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	return records, nil
}

// Get returns the full row for one vector ID, all columns included.
func (s *SQLiteStore) Get(ctx context.Context, vectorID string) (*PatentRecord, error) {
	var rec PatentRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT vector_id, patent_number, title, description, abstract, claims_text, detailed_summary
		 FROM patent_chunks WHERE vector_id = ?`, vectorID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", vectorID, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec PatentRecord) error {
	if strings.TrimSpace(rec.VectorID) == "" {
		return errors.New("vector_id is required")
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO patent_chunks (
			vector_id, patent_number, title, description, abstract, claims_text, detailed_summary
		) VALUES (
			:vector_id, :patent_number, :title, :description, :abstract, :claims_text, :detailed_summary
		)`, rec)
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.VectorID, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	return s.db.GetContext(ctx, &one, "SELECT 1")
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM patent_chunks"); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// EnsureDBFile downloads the SQLite file when it does not exist locally and a
// download URL is configured. Deployments ship the ingested database this way
// instead of re-running ingestion per instance.
func EnsureDBFile(path, downloadURL string) error {
	if _, err := os.Stat(path); err == nil {
		log.Printf("store db_present path=%s", path)
		return nil
	}
	if strings.TrimSpace(downloadURL) == "" {
		return fmt.Errorf("database %s not found locally and no download URL configured", path)
	}
	log.Printf("store db_download url=%s", downloadURL)
	resp, err := http.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("download database: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download database: status %d", resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return fmt.Errorf("write database file: %w", err)
	}
	log.Printf("store db_download_complete path=%s", path)
	return nil
}
