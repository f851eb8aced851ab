package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/starford/notesight/internal/apperr"
)

// esDateFormat matches the default strict_date_optional_time mapping.
const esDateFormat = "2006-01-02T15:04:05.000Z07:00"

// ElasticConfig configures the Elasticsearch engine.
type ElasticConfig struct {
	Addresses []string
	Index     string
	// Timeout bounds every remote call; zero leaves it to ctx.
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Elastic is an Engine backed by a remote Elasticsearch cluster.
type Elastic struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

// NewElastic creates the client. No request is sent until the first call.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("search: elasticsearch hosts: %w", apperr.ErrConfiguration)
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("search: elasticsearch index name: %w", apperr.ErrConfiguration)
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search: elasticsearch client: %w: %w", apperr.ErrConfiguration, err)
	}
	return &Elastic{es: es, index: cfg.Index, timeout: cfg.Timeout}, nil
}

// IndexExists reports whether the configured index exists.
func (e *Elastic) IndexExists(ctx context.Context) (bool, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, unavailable("index exists", err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError("index exists", res)
	}
}

// CreateIndex creates the index with schema as its mapping.
func (e *Elastic) CreateIndex(ctx context.Context, schema Schema) error {
	props := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		props[f.Name] = map[string]string{"type": string(f.Type)}
	}
	body, err := json.Marshal(map[string]any{
		"mappings": map[string]any{"properties": props},
	})
	if err != nil {
		return fmt.Errorf("search: marshal mapping: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return unavailable("create index", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

// Index upserts doc under id.
func (e *Elastic) Index(ctx context.Context, id string, doc Document, refresh bool) error {
	body, err := json.Marshal(esDocument(doc))
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	opts := []func(*esapi.IndexRequest){
		e.es.Index.WithDocumentID(id),
		e.es.Index.WithContext(ctx),
	}
	if refresh {
		opts = append(opts, e.es.Index.WithRefresh("true"))
	}
	res, err := e.es.Index(e.index, bytes.NewReader(body), opts...)
	if err != nil {
		return unavailable("index document", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("index document", res)
	}
	return nil
}

// Update sends a partial document update for id.
func (e *Elastic) Update(ctx context.Context, id string, doc Document) error {
	body, err := json.Marshal(map[string]any{"doc": esDocument(doc)})
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Update(e.index, id, bytes.NewReader(body), e.es.Update.WithContext(ctx))
	if err != nil {
		return unavailable("update document", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("update document", res)
	}
	return nil
}

// Delete removes the document stored under id.
func (e *Elastic) Delete(ctx context.Context, id string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Delete(e.index, id, e.es.Delete.WithContext(ctx))
	if err != nil {
		return unavailable("delete document", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return responseError("delete document", res)
	}
	return nil
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query over q.Fields.
func (e *Elastic) Search(ctx context.Context, q Query) ([]Hit, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q.Text,
				"fields": q.Fields,
			},
		},
		"size": q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Search(
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(body)),
		e.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	hits := make([]Hit, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// Close is a no-op: the client holds no resources beyond its HTTP transport.
func (e *Elastic) Close() error { return nil }

func (e *Elastic) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func esDocument(doc Document) map[string]string {
	return map[string]string{
		"title":      doc.Title,
		"content":    doc.Content,
		"created_at": doc.CreatedAt.UTC().Format(esDateFormat),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("search: %s: %w: %w", op, apperr.ErrServiceUnavailable, err)
}

// responseError classifies an error response from the cluster.
func responseError(op string, res *esapi.Response) error {
	var detail string
	if res.Body != nil {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		detail = strings.TrimSpace(string(raw))
	}
	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("search: %s: %w", op, apperr.ErrNotFound)
	case res.StatusCode == http.StatusBadRequest && strings.Contains(detail, "resource_already_exists_exception"):
		return fmt.Errorf("search: %s: %w", op, apperr.ErrAlreadyExists)
	default:
		return fmt.Errorf("search: %s: %w: status %d: %s", op, apperr.ErrServiceUnavailable, res.StatusCode, detail)
	}
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
}
