// Package chroma is a client for the Chroma vector database HTTP API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/meetmind/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.trychroma.com"
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	shortTimeout  = 10 * time.Second
	mediumTimeout = 30 * time.Second
	longTimeout   = 60 * time.Second

	maxErrorBody = 512
)

// ErrMalformedResponse is returned when a response cannot be decoded.
var ErrMalformedResponse = errors.New("malformed chroma response")

// StatusError is a non-success HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chroma %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Transient reports whether the request may succeed when repeated.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Config holds the connection settings. They are constant for the client's lifetime.
type Config struct {
	BaseURL    string
	APIKey     string
	Tenant     string
	Database   string
	HTTPClient *http.Client
}

// Client talks to one Chroma tenant and database.
type Client struct {
	baseURL    string
	apiKey     string
	tenant     string
	database   string
	httpClient *http.Client
}

// New creates a Client. Empty fields take their defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		tenant:     cfg.Tenant,
		database:   cfg.Database,
		httpClient: cfg.HTTPClient,
	}
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r collectionResponse) toDomain() (*domain.Collection, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: collection without id", ErrMalformedResponse)
	}
	return &domain.Collection{ID: r.ID, Name: r.Name}, nil
}

// GetCollection returns the named collection, or nil when it does not exist.
func (c *Client) GetCollection(ctx context.Context, name string) (*domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, shortTimeout)
	defer cancel()

	var out collectionResponse
	err := c.do(ctx, "get collection", http.MethodGet, "/api/v1/collections/"+url.PathEscape(name), nil, &out)
	if err != nil {
		if isMissingCollection(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.toDomain()
}

type createCollectionRequest struct {
	Name        string            `json:"name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	GetOrCreate bool              `json:"get_or_create"`
}

// CreateCollection creates the named collection using cosine distance. An
// existing collection is returned unchanged.
func (c *Client) CreateCollection(ctx context.Context, name string) (*domain.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, mediumTimeout)
	defer cancel()

	req := createCollectionRequest{
		Name:        name,
		Metadata:    map[string]string{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}
	var out collectionResponse
	if err := c.do(ctx, "create collection", http.MethodPost, "/api/v1/collections", req, &out); err != nil {
		return nil, err
	}
	return out.toDomain()
}

type upsertRequest struct {
	IDs        []string            `json:"ids"`
	Embeddings [][]float32         `json:"embeddings"`
	Documents  []string            `json:"documents"`
	Metadatas  []map[string]string `json:"metadatas"`
}

// Upsert writes fragments in one batch, replacing entries with the same id.
func (c *Client) Upsert(ctx context.Context, col *domain.Collection, fragments []domain.KnowledgeFragment) error {
	if len(fragments) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()

	req := upsertRequest{
		IDs:        make([]string, len(fragments)),
		Embeddings: make([][]float32, len(fragments)),
		Documents:  make([]string, len(fragments)),
		Metadatas:  make([]map[string]string, len(fragments)),
	}
	for i, f := range fragments {
		req.IDs[i] = f.ID
		req.Embeddings[i] = f.Embedding
		req.Documents[i] = f.Text
		req.Metadatas[i] = f.Metadata()
	}

	return c.do(ctx, "upsert", http.MethodPost, "/api/v1/collections/"+url.PathEscape(col.ID)+"/upsert", req, nil)
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Query returns the topK fragments nearest to embedding, closest first.
func (c *Client) Query(ctx context.Context, col *domain.Collection, embedding []float32, topK int) ([]domain.RetrievedMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, mediumTimeout)
	defer cancel()

	req := queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	var out queryResponse
	if err := c.do(ctx, "query", http.MethodPost, "/api/v1/collections/"+url.PathEscape(col.ID)+"/query", req, &out); err != nil {
		return nil, err
	}
	return out.matches()
}

func (r queryResponse) matches() ([]domain.RetrievedMatch, error) {
	if len(r.IDs) == 0 {
		return []domain.RetrievedMatch{}, nil
	}
	ids := r.IDs[0]
	if len(r.Documents) == 0 || len(r.Distances) == 0 || len(r.Documents[0]) != len(ids) || len(r.Distances[0]) != len(ids) {
		return nil, fmt.Errorf("%w: result columns differ in length", ErrMalformedResponse)
	}

	matches := make([]domain.RetrievedMatch, len(ids))
	for i, id := range ids {
		m := domain.RetrievedMatch{
			ID:       id,
			Distance: r.Distances[0][i],
			Metadata: map[string]string{},
		}
		if doc := r.Documents[0][i]; doc != nil {
			m.Content = *doc
		}
		if len(r.Metadatas) > 0 && i < len(r.Metadatas[0]) {
			for k, v := range r.Metadatas[0][i] {
				m.Metadata[k] = metadataString(v)
			}
		}
		matches[i] = m
	}
	return matches, nil
}

func metadataString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

type deleteRequest struct {
	Where map[string]any `json:"where"`
}

// DeleteWhere removes every entry whose metadata equals all pairs in where.
func (c *Client) DeleteWhere(ctx context.Context, col *domain.Collection, where map[string]string) error {
	if len(where) == 0 {
		return errors.New("chroma delete: empty filter")
	}

	ctx, cancel := context.WithTimeout(ctx, mediumTimeout)
	defer cancel()

	return c.do(ctx, "delete", http.MethodPost, "/api/v1/collections/"+url.PathEscape(col.ID)+"/delete",
		deleteRequest{Where: whereClause(where)}, nil)
}

// whereClause builds a Chroma filter; several pairs are combined with $and.
func whereClause(where map[string]string) map[string]any {
	if len(where) == 1 {
		for k, v := range where {
			return map[string]any{k: v}
		}
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	clauses := make([]map[string]any, len(keys))
	for i, k := range keys {
		clauses[i] = map[string]any{k: where[k]}
	}
	return map[string]any{"$and": clauses}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("chroma %s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	u := c.baseURL + path + "?" + url.Values{"tenant": {c.tenant}, "database": {c.database}}.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("chroma %s: creating request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-Chroma-Token", c.apiKey)
	}
	req.Header.Set("X-Chroma-Tenant", c.tenant)
	req.Header.Set("X-Chroma-Database", c.database)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chroma %s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// isMissingCollection recognizes both the 404 of recent servers and the
// "does not exist" error body older servers return with other statuses.
func isMissingCollection(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(se.Body), "does not exist")
}
