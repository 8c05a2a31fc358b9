package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultVectorDimension matches the collection configuration of the
	// backing vector database. No embeddings are computed; every point
	// carries a zero placeholder vector because the backend requires a
	// vector per point for indexing.
	DefaultVectorDimension = 768

	// DefaultRequestTimeout bounds every remote call so a primary store
	// outage degrades to fallback promptly instead of hanging requests.
	DefaultRequestTimeout = 5 * time.Second
)

// QdrantConfig configures the primary store adapter.
type QdrantConfig struct {
	URL        string // base URL, e.g. https://qdrant.example.com:6333
	APIKey     string
	Collection string // defaults to "chat_history"
	Dimension  int    // defaults to DefaultVectorDimension
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// QdrantStore is the durable, queryable primary backend. Records are
// stored as points tagged with the chat identifier in the payload; the
// collection is filter-indexed, not time-ordered, so retrieval
// over-fetches and sorts client-side.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     zerolog.Logger
}

// NewQdrantStore creates a new primary store adapter. It performs no
// network I/O; connectivity is probed by EnsureSchema and per call.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("primary store URL is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "chat_history"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultVectorDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}

	return &QdrantStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger.With().Str("component", "qdrant").Logger(),
	}, nil
}

// Backend returns the backend identifier reported by DescribeStatus.
func (s *QdrantStore) Backend() string {
	return "qdrant"
}

// EnsureSchema idempotently creates the backing collection and the
// payload index used to filter by chat identifier.
func (s *QdrantStore) EnsureSchema(ctx context.Context) error {
	createCollection := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	path := "/collections/" + s.collection
	if code, err := s.do(ctx, http.MethodPut, path, createCollection, nil); err != nil {
		// 409 means the collection already exists.
		if code != http.StatusConflict {
			return err
		}
	}

	createIndex := map[string]interface{}{
		"field_name":   "chat_id",
		"field_schema": "keyword",
	}
	if code, err := s.do(ctx, http.MethodPut, path+"/index", createIndex, nil); err != nil {
		if code != http.StatusConflict && code != http.StatusBadRequest {
			return err
		}
	}

	s.logger.Info().Str("collection", s.collection).Msg("Primary store schema verified")
	return nil
}

// Append writes a uniquely identified record tagged with the chat ID.
func (s *QdrantStore) Append(ctx context.Context, chatID string, rec Record) error {
	point := map[string]interface{}{
		"id":     uuid.NewString(),
		"vector": make([]float32, s.dimension), // placeholder, see DefaultVectorDimension
		"payload": map[string]interface{}{
			"chat_id":   chatID,
			"role":      string(rec.Role),
			"content":   rec.Content,
			"timestamp": rec.Timestamp,
			"seq":       rec.Seq,
		},
	}
	body := map[string]interface{}{
		"points": []interface{}{point},
	}

	code, err := s.do(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", body, nil)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) && code >= 400 && code < 500 {
			return fmt.Errorf("%w: upsert returned status %d", ErrStoreRejected, code)
		}
		return err
	}
	return nil
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			Payload struct {
				ChatID    string `json:"chat_id"`
				Role      string `json:"role"`
				Content   string `json:"content"`
				Timestamp string `json:"timestamp"`
				Seq       uint64 `json:"seq"`
			} `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// FetchWindow retrieves up to limit records for the chat in chronological
// order. The collection does not guarantee native ordering on payload
// fields, so the adapter over-fetches limit*2 points, sorts by
// (timestamp, seq) and truncates to the most recent limit entries.
func (s *QdrantStore) FetchWindow(ctx context.Context, chatID string, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	body := map[string]interface{}{
		"filter":       chatFilter(chatID),
		"limit":        limit * 2,
		"with_payload": true,
		"with_vector":  false,
	}

	var resp scrollResponse
	code, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/scroll", body, &resp)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) && code >= 400 && code < 500 {
			return nil, fmt.Errorf("%w: scroll returned status %d", ErrStoreQuery, code)
		}
		return nil, err
	}

	records := make([]Record, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		records = append(records, Record{
			Role:      Role(p.Payload.Role),
			Content:   p.Payload.Content,
			Timestamp: p.Payload.Timestamp,
			Seq:       p.Payload.Seq,
		})
	}

	sortChronological(records)
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Clear deletes all records tagged with the chat ID.
func (s *QdrantStore) Clear(ctx context.Context, chatID string) error {
	body := map[string]interface{}{
		"filter": chatFilter(chatID),
	}
	if _, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", body, nil); err != nil {
		return err
	}
	return nil
}

type collectionInfoResponse struct {
	Result struct {
		PointsCount int64 `json:"points_count"`
	} `json:"result"`
}

// DescribeStatus reports a health summary for diagnostics. It never
// returns an error; failures are captured in the returned status.
func (s *QdrantStore) DescribeStatus(ctx context.Context) StoreStatus {
	status := StoreStatus{
		Configured: true,
		Backend:    s.Backend(),
	}

	var info collectionInfoResponse
	if _, err := s.do(ctx, http.MethodGet, "/collections/"+s.collection, nil, &info); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Reachable = true
	status.Records = info.Result.PointsCount
	return status
}

func chatFilter(chatID string) map[string]interface{} {
	return map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"key":   "chat_id",
				"match": map[string]interface{}{"value": chatID},
			},
		},
	}
}

// do issues one JSON request against the store. It returns the HTTP
// status code (0 when the request never reached the server) and an error
// already classified as ErrStoreUnavailable for connectivity, auth and
// server-side failures; other 4xx statuses are returned unclassified so
// callers can map them to the operation-specific kind.
func (s *QdrantStore) do(ctx context.Context, method, path string, payload, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("%w: encode request: %v", ErrStoreRejected, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrStoreUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, fmt.Errorf("%w: authentication failed (status %d)", ErrStoreUnavailable, resp.StatusCode)
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("%w: server error (status %d)", ErrStoreUnavailable, resp.StatusCode)
	default:
		return resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrStoreQuery, err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}
