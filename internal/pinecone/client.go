// Package pinecone is a minimal REST client for the Pinecone data plane and
// inference API: hybrid upsert, nearest-neighbor query, index stats, and
// sparse embedding generation.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// SparseVector is the (index, weight) pair form used for hybrid scoring.
type SparseVector struct {
	Indices []int64   `json:"indices"`
	Values  []float32 `json:"values"`
}

// Vector is one entry in the index: dense values, optional sparse values,
// and the minimal metadata kept alongside (full records live in SQLite).
type Vector struct {
	ID           string            `json:"id"`
	Values       []float32         `json:"values"`
	SparseValues *SparseVector     `json:"sparseValues,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

type QueryRequest struct {
	Vector          []float32
	SparseVector    *SparseVector
	TopK            int
	IncludeMetadata bool
}

type Stats struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// Index is the vector-index capability the router and pipeline consume.
type Index interface {
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	Upsert(ctx context.Context, vectors []Vector) error
	DescribeStats(ctx context.Context) (Stats, error)
}

// SparseEncoder produces sparse term-weight vectors via Pinecone inference.
type SparseEncoder interface {
	EmbedSparse(ctx context.Context, text string, forQuery bool) (*SparseVector, error)
}

const (
	DefaultInferenceURL = "https://api.pinecone.io"
	SparseModel         = "pinecone-sparse-english-v0"
	apiVersion          = "2025-01"
)

type Config struct {
	// Host is the index data-plane host, e.g. https://my-index-abc123.svc.aped-4627-b74a.pinecone.io.
	Host string
	// InferenceURL overrides the control-plane base used for sparse inference.
	InferenceURL string
	APIKey       string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	host         string
	inferenceURL string
	apiKey       string
	client       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("pinecone index host is empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("PINECONE_API_KEY not configured")
	}
	if cfg.InferenceURL == "" {
		cfg.InferenceURL = DefaultInferenceURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		host:         strings.TrimRight(cfg.Host, "/"),
		inferenceURL: strings.TrimRight(cfg.InferenceURL, "/"),
		apiKey:       cfg.APIKey,
		client:       httpClient,
	}, nil
}

type queryBody struct {
	Vector          []float32     `json:"vector"`
	SparseVector    *SparseVector `json:"sparseVector,omitempty"`
	TopK            int           `json:"topK"`
	IncludeMetadata bool          `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

func (c *Client) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	if req.TopK <= 0 {
		req.TopK = 5
	}
	body := queryBody{
		Vector:          req.Vector,
		SparseVector:    req.SparseVector,
		TopK:            req.TopK,
		IncludeMetadata: req.IncludeMetadata,
	}
	var out queryResponse
	if err := c.postJSON(ctx, c.host+"/query", body, &out); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	return out.Matches, nil
}

// Upsert writes hybrid vectors. When the hybrid write is rejected the sparse
// values are stripped and the write retried dense-only so ingestion keeps
// moving on indexes without sparse support.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	body := map[string]any{"vectors": vectors}
	err := c.postJSON(ctx, c.host+"/vectors/upsert", body, nil)
	if err == nil {
		return nil
	}

	hybrid := false
	for _, v := range vectors {
		if v.SparseValues != nil {
			hybrid = true
			break
		}
	}
	if !hybrid {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	log.Printf("pinecone hybrid_upsert_failed falling back to dense-only err=%q", err.Error())
	dense := make([]Vector, len(vectors))
	for i, v := range vectors {
		v.SparseValues = nil
		dense[i] = v
	}
	if ferr := c.postJSON(ctx, c.host+"/vectors/upsert", map[string]any{"vectors": dense}, nil); ferr != nil {
		return fmt.Errorf("pinecone upsert (dense fallback): %w", ferr)
	}
	return nil
}

func (c *Client) DescribeStats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.postJSON(ctx, c.host+"/describe_index_stats", map[string]any{}, &out); err != nil {
		return Stats{}, fmt.Errorf("pinecone describe_index_stats: %w", err)
	}
	return out, nil
}

type inferenceRequest struct {
	Model      string            `json:"model"`
	Parameters map[string]string `json:"parameters"`
	Inputs     []map[string]any  `json:"inputs"`
}

type inferenceResponse struct {
	Data []struct {
		SparseIndices []int64   `json:"sparse_indices"`
		SparseValues  []float32 `json:"sparse_values"`
	} `json:"data"`
}

func (c *Client) EmbedSparse(ctx context.Context, text string, forQuery bool) (*SparseVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}
	inputType := "passage"
	if forQuery {
		inputType = "query"
	}
	body := inferenceRequest{
		Model:      SparseModel,
		Parameters: map[string]string{"input_type": inputType, "truncate": "END"},
		Inputs:     []map[string]any{{"text": text}},
	}
	var out inferenceResponse
	if err := c.postJSON(ctx, c.inferenceURL+"/embed", body, &out); err != nil {
		return nil, fmt.Errorf("pinecone sparse embed: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].SparseIndices) == 0 {
		return nil, errors.New("sparse embed response contained no data")
	}
	d := out.Data[0]
	if len(d.SparseIndices) != len(d.SparseValues) {
		return nil, fmt.Errorf("sparse embed index/value length mismatch: %d vs %d", len(d.SparseIndices), len(d.SparseValues))
	}
	return &SparseVector{Indices: d.SparseIndices, Values: d.SparseValues}, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(blob)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
