package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newStoreForTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "patent_data.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertRoundTrip(t *testing.T) {
	s := newStoreForTest(t)
	ctx := context.Background()
	rec := PatentRecord{
		VectorID:        "US123_chunk_0_abcd1234",
		PatentNumber:    "US123",
		Title:           "Autonomous Drone Navigation",
		Description:     "A long description.",
		Abstract:        "An abstract.",
		ClaimsText:      "Claim 1. A method...",
		DetailedSummary: "Summary of the invention.",
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Get(ctx, rec.VectorID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != rec {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *got, rec)
	}
}

func TestInsertReplacesByKey(t *testing.T) {
	s := newStoreForTest(t)
	ctx := context.Background()
	rec := PatentRecord{VectorID: "id1", PatentNumber: "US1", Title: "Old"}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	rec.Title = "New"
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("re-Insert: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, err := s.Get(ctx, "id1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "New" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestInsertRequiresVectorID(t *testing.T) {
	s := newStoreForTest(t)
	if err := s.Insert(context.Background(), PatentRecord{PatentNumber: "US1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchByVectorIDsOmitsUnmatched(t *testing.T) {
	s := newStoreForTest(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Insert(ctx, PatentRecord{VectorID: id, PatentNumber: "US" + id, DetailedSummary: "s-" + id}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	records, err := s.FetchByVectorIDs(ctx, []string{"a", "missing", "b"})
	if err != nil {
		t.Fatalf("FetchByVectorIDs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.VectorID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("records = %+v", records)
	}
}

func TestFetchByVectorIDsEmptyInput(t *testing.T) {
	s := newStoreForTest(t)
	records, err := s.FetchByVectorIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchByVectorIDs: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v", records)
	}
}

func TestPing(t *testing.T) {
	s := newStoreForTest(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestEnsureDBFileDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sqlite-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "patent_data.db")
	if err := EnsureDBFile(path, srv.URL); err != nil {
		t.Fatalf("EnsureDBFile: %v", err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(blob) != "sqlite-bytes" {
		t.Fatalf("content = %q", blob)
	}
}

func TestEnsureDBFileMissingURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patent_data.db")
	if err := EnsureDBFile(path, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnsureDBFileSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patent_data.db")
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	// URL would fail if contacted.
	if err := EnsureDBFile(path, "http://127.0.0.1:0/nope"); err != nil {
		t.Fatalf("EnsureDBFile: %v", err)
	}
	blob, _ := os.ReadFile(path)
	if string(blob) != "existing" {
		t.Fatalf("existing file overwritten: %q", blob)
	}
}
