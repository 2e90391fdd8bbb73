// Package httpapi exposes the search endpoint, health probes, and the static
// chat frontend.
package httpapi

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joelkehle/intellipatent/internal/pinecone"
	"github.com/joelkehle/intellipatent/internal/router"
)

const apiVersion = "1.4.3"

// Searcher is the routing capability the server fronts.
type Searcher interface {
	Search(ctx context.Context, req router.Request) (router.Response, error)
}

// HealthStore is the slice of the metadata store the deep health check needs.
type HealthStore interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// StatsIndex is the slice of the vector index the deep health check needs.
type StatsIndex interface {
	DescribeStats(ctx context.Context) (pinecone.Stats, error)
}

type Server struct {
	searcher Searcher
	store    HealthStore
	index    StatsIndex
	webDir   string
}

func NewServer(searcher Searcher, store HealthStore, index StatsIndex, webDir string) http.Handler {
	s := &Server{searcher: searcher, store: store, index: index, webDir: webDir}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// searchResponse decorates the router's response with rendered-markdown
// variants for the chat client.
type searchResponse struct {
	router.Response
	GenericAnswerHTML string `json:"generic_answer_html,omitempty"`
	LiveSummaryHTML   string `json:"live_summary_html,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// Any uncaught failure in routing surfaces as a generic error payload,
	// never a crashed handler.
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("httpapi search_panic err=%v", rec)
			writeJSON(w, http.StatusOK, map[string]any{"error": "internal error"})
		}
	}()

	var req router.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query is required"})
		return
	}

	resp, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		log.Printf("httpapi search_failed err=%q", err.Error())
		writeJSON(w, http.StatusOK, map[string]any{"error": err.Error()})
		return
	}

	out := searchResponse{Response: resp}
	if resp.GenericAnswer != "" {
		out.GenericAnswerHTML = renderMarkdown(resp.GenericAnswer)
	}
	if resp.LiveSummary != "" {
		out.LiveSummaryHTML = renderMarkdown(resp.LiveSummary)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	services := map[string]string{"database": "connected", "pinecone": "connected"}
	var firstErr error

	if err := s.store.Ping(ctx); err != nil {
		services["database"] = "error"
		firstErr = err
	}
	chunkCount := -1
	if n, err := s.store.Count(ctx); err == nil {
		chunkCount = n
	}

	stats, err := s.index.DescribeStats(ctx)
	if err != nil {
		services["pinecone"] = "error"
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "degraded",
			"version":  apiVersion,
			"services": services,
			"error":    firstErr.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  apiVersion,
		"services": services,
		"stats": map[string]int{
			"metadata_rows": chunkCount,
			"index_vectors": stats.TotalVectorCount,
		},
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
		return
	}
	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if _, err := fs.Stat(os.DirFS(s.webDir), rel); err == nil {
		http.ServeFile(w, r, filepath.Join(s.webDir, rel))
		return
	}
	http.NotFound(w, r)
}
