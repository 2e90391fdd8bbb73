package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{Host: srv.URL, InferenceURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestQueryHybridRequestShape(t *testing.T) {
	var got queryBody
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "k" {
			t.Errorf("missing api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(queryResponse{Matches: []Match{{ID: "US123_chunk_0_abcd1234", Score: 0.91}}})
	}))

	matches, err := c.Query(context.Background(), QueryRequest{
		Vector:       []float32{0.1, 0.2},
		SparseVector: &SparseVector{Indices: []int64{7, 42}, Values: []float32{0.5, 0.3}},
		TopK:         3,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "US123_chunk_0_abcd1234" {
		t.Fatalf("matches = %+v", matches)
	}
	if got.TopK != 3 || got.SparseVector == nil || got.IncludeMetadata {
		t.Errorf("request body = %+v", got)
	}
}

func TestQueryDefaultsTopK(t *testing.T) {
	var got queryBody
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(queryResponse{})
	}))
	if _, err := c.Query(context.Background(), QueryRequest{Vector: []float32{1}}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.TopK != 5 {
		t.Errorf("topK = %d, want 5", got.TopK)
	}
}

func TestUpsertDenseFallback(t *testing.T) {
	calls := 0
	var lastBody struct {
		Vectors []Vector `json:"vectors"`
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		lastBody.Vectors = nil
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		if calls == 1 {
			http.Error(w, `{"message":"sparse values not supported"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	v := Vector{
		ID:           "id1",
		Values:       []float32{0.1},
		SparseValues: &SparseVector{Indices: []int64{1}, Values: []float32{0.9}},
		Metadata:     map[string]string{"patent_number": "US123", "title": "T"},
	}
	if err := c.Upsert(context.Background(), []Vector{v}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if lastBody.Vectors[0].SparseValues != nil {
		t.Error("fallback write should be dense-only")
	}
}

func TestUpsertDenseOnlyErrorDoesNotRetry(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	err := c.Upsert(context.Background(), []Vector{{ID: "id1", Values: []float32{0.1}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestEmbedSparse(t *testing.T) {
	var got inferenceRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"sparse_indices": []int64{3, 9}, "sparse_values": []float32{0.7, 0.1}}},
		})
	}))

	sv, err := c.EmbedSparse(context.Background(), "semiconductor cache", true)
	if err != nil {
		t.Fatalf("EmbedSparse: %v", err)
	}
	if len(sv.Indices) != 2 || sv.Indices[0] != 3 {
		t.Fatalf("sparse = %+v", sv)
	}
	if got.Parameters["input_type"] != "query" {
		t.Errorf("input_type = %q, want query", got.Parameters["input_type"])
	}
	if got.Model != SparseModel {
		t.Errorf("model = %q", got.Model)
	}
}

func TestEmbedSparsePassageInputType(t *testing.T) {
	var got inferenceRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"sparse_indices": []int64{1}, "sparse_values": []float32{0.5}}},
		})
	}))
	if _, err := c.EmbedSparse(context.Background(), "chunk text", false); err != nil {
		t.Fatalf("EmbedSparse: %v", err)
	}
	if got.Parameters["input_type"] != "passage" {
		t.Errorf("input_type = %q, want passage", got.Parameters["input_type"])
	}
}

func TestEmbedSparseEmptyText(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	if _, err := c.EmbedSparse(context.Background(), "  ", false); err == nil {
		t.Fatal("expected error")
	}
}

func TestDescribeStats(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Stats{Dimension: 1536, TotalVectorCount: 487})
	}))
	stats, err := c.DescribeStats(context.Background())
	if err != nil {
		t.Fatalf("DescribeStats: %v", err)
	}
	if stats.Dimension != 1536 || stats.TotalVectorCount != 487 {
		t.Fatalf("stats = %+v", stats)
	}
}
