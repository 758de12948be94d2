package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// QdrantConfig configures QdrantStore.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// QdrantStore is a Store backed by the Qdrant REST API. Collections use cosine distance and the
// canonical name is kept in the "col" payload field.
type QdrantStore struct {
	url    string
	apiKey string
	client *http.Client

	dims map[string]int
	mu   sync.RWMutex
}

// NewQdrantStore returns a client for the Qdrant instance at cfg.URL.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &QdrantStore{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: client,
		dims:   make(map[string]int),
	}, nil
}

type qdrantStatusError struct {
	method string
	path   string
	status int
	body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s: status %d: %s", e.method, e.path, e.status, e.body)
}

func (s *QdrantStore) collectionPath(name string, parts ...string) string {
	p := "/collections/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// do sends body as JSON and decodes the response into out. Non-2xx responses are returned as
// *qdrantStatusError; transport failures wrap ErrIndexUnavailable.
func (s *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return unavailable("qdrant %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &qdrantStatusError{method: method, path: path, status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return unavailable("decode qdrant response: %v", err)
		}
	}
	return nil
}

// classify maps a status error to the package sentinels.
func (s *QdrantStore) classify(collection string, err error) error {
	se, ok := err.(*qdrantStatusError)
	if !ok {
		return err
	}
	if se.status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return fmt.Errorf("%w: %s", ErrIndexUnavailable, se.Error())
}

type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection with cosine distance unless it exists.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	var info qdrantCollectionInfo
	err := s.do(ctx, http.MethodGet, s.collectionPath(name), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size != 0 && size != dim {
			return &DimensionMismatchError{Collection: name, Expected: size, Actual: dim}
		}
	default:
		if se, ok := err.(*qdrantStatusError); !ok || se.status != http.StatusNotFound {
			return s.classify(name, err)
		}
		body := map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}
		if err := s.do(ctx, http.MethodPut, s.collectionPath(name), body, nil); err != nil {
			// Another process may have created it between the GET and the PUT.
			if se, ok := err.(*qdrantStatusError); !ok || se.status != http.StatusConflict {
				return s.classify(name, err)
			}
		}
	}
	s.mu.Lock()
	s.dims[name] = dim
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) checkDim(collection string, v []float32) error {
	s.mu.RLock()
	dim, ok := s.dims[collection]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return checkDim(collection, dim, v)
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float64        `json:"score,omitempty"`
}

func (p qdrantPoint) id() string {
	switch v := p.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p qdrantPoint) name() string {
	name, _ := p.Payload[PayloadKey].(string)
	return name
}

// offsetValue sends numeric point ids as numbers and everything else as strings.
func offsetValue(offset string) any {
	if n, err := strconv.ParseUint(offset, 10, 64); err == nil {
		return n
	}
	return offset
}

// Upsert writes points and waits for the operation to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, len(points))}
	for i, p := range points {
		if err := s.checkDim(collection, p.Vector); err != nil {
			return err
		}
		body.Points[i] = qdrantPoint{
			ID:      offsetValue(p.ID),
			Vector:  p.Vector,
			Payload: map[string]any{PayloadKey: p.Name},
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(collection, "points")+"?wait=true", body, nil); err != nil {
		return s.classify(collection, err)
	}
	return nil
}

// Search returns the nearest points by cosine similarity.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	if err := s.checkDim(collection, vector); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Match{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath(collection, "points", "search"), req, &resp); err != nil {
		return nil, s.classify(collection, err)
	}
	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{ID: r.id(), Name: r.name(), Score: r.Score})
	}
	return matches, nil
}

// Scroll pages through the collection using Qdrant's next_page_offset cursor.
func (s *QdrantStore) Scroll(ctx context.Context, collection string, limit int, offset string) ([]Point, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("limit must be positive")
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != "" {
		req["offset"] = offsetValue(offset)
	}
	var resp struct {
		Result struct {
			Points         []qdrantPoint `json:"points"`
			NextPageOffset any           `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath(collection, "points", "scroll"), req, &resp); err != nil {
		return nil, "", s.classify(collection, err)
	}
	points := make([]Point, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		points = append(points, Point{ID: p.id(), Name: p.name()})
	}
	next := qdrantPoint{ID: resp.Result.NextPageOffset}.id()
	return points, next, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath(collection, "points", "count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, s.classify(collection, err)
	}
	return resp.Result.Count, nil
}

// Close releases idle connections.
func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
