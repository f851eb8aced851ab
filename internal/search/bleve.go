package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/samber/lo"

	"github.com/starford/notesight/internal/apperr"
)

// Bleve is an Engine backed by an embedded Bleve index, on disk at path or,
// when path is empty, in memory. It exists for single-binary deployments and
// tests. Writes are visible to searches as soon as they return, so the
// refresh flag needs no extra work.
type Bleve struct {
	path string

	mu  sync.RWMutex
	idx bleve.Index
}

// NewBleve returns an engine for the index at path. The index itself is opened
// or created lazily by IndexExists and CreateIndex.
func NewBleve(path string) *Bleve {
	return &Bleve{path: path}
}

// IndexExists reports whether the index has been created. An on-disk index
// left by a previous process is opened.
func (b *Bleve) IndexExists(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx != nil {
		return true, nil
	}
	if b.path == "" {
		return false, nil
	}
	idx, err := bleve.Open(b.path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("search: open bleve index: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	b.idx = idx
	return true, nil
}

// CreateIndex builds the Bleve mapping for schema and creates the index.
func (b *Bleve) CreateIndex(_ context.Context, schema Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx != nil {
		return fmt.Errorf("search: create index: %w", apperr.ErrAlreadyExists)
	}

	m := bleveMapping(schema)
	var (
		idx bleve.Index
		err error
	)
	if b.path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		idx, err = bleve.New(b.path, m)
	}
	if errors.Is(err, bleve.ErrorIndexPathExists) {
		return fmt.Errorf("search: create index: %w", apperr.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("search: create bleve index: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	b.idx = idx
	return nil
}

// Index upserts doc under id.
func (b *Bleve) Index(_ context.Context, id string, doc Document, _ bool) error {
	idx, err := b.open()
	if err != nil {
		return err
	}
	if err := idx.Index(id, bleveDocument(doc)); err != nil {
		return fmt.Errorf("search: index document: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	return nil
}

// Update replaces the document stored under id. Every field is always
// supplied, so re-indexing the full document is the partial update.
func (b *Bleve) Update(ctx context.Context, id string, doc Document) error {
	if err := b.mustExist(id, "update document"); err != nil {
		return err
	}
	return b.Index(ctx, id, doc, true)
}

// Delete removes the document stored under id.
func (b *Bleve) Delete(_ context.Context, id string) error {
	if err := b.mustExist(id, "delete document"); err != nil {
		return err
	}
	idx, err := b.open()
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("search: delete document: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	return nil
}

// Search runs one match query per field, combined as a disjunction so each
// field contributes with the same weight.
func (b *Bleve) Search(_ context.Context, q Query) ([]Hit, error) {
	idx, err := b.open()
	if err != nil {
		return nil, err
	}

	matches := lo.Map(q.Fields, func(field string, _ int) query.Query {
		mq := bleve.NewMatchQuery(q.Text)
		mq.SetField(field)
		return mq
	})
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(matches...), q.Limit, 0, false)

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w: %w", apperr.ErrServiceUnavailable, err)
	}
	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// Close closes the underlying index, if open.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		return nil
	}
	err := b.idx.Close()
	b.idx = nil
	return err
}

// open returns the live index, loading an on-disk one on first use.
func (b *Bleve) open() (bleve.Index, error) {
	b.mu.RLock()
	idx := b.idx
	b.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	exists, err := b.IndexExists(context.Background())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("search: bleve index is not created: %w", apperr.ErrNotFound)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx, nil
}

func (b *Bleve) mustExist(id, op string) error {
	idx, err := b.open()
	if err != nil {
		return err
	}
	doc, err := idx.Document(id)
	if err != nil {
		return fmt.Errorf("search: %s: %w: %w", op, apperr.ErrServiceUnavailable, err)
	}
	if doc == nil {
		return fmt.Errorf("search: %s %q: %w", op, id, apperr.ErrNotFound)
	}
	return nil
}

func bleveMapping(schema Schema) *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()
	for _, f := range schema.Fields {
		switch f.Type {
		case FieldDate:
			doc.AddFieldMappingsAt(f.Name, bleve.NewDateTimeFieldMapping())
		default:
			doc.AddFieldMappingsAt(f.Name, bleve.NewTextFieldMapping())
		}
	}
	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func bleveDocument(doc Document) map[string]any {
	return map[string]any{
		"title":      doc.Title,
		"content":    doc.Content,
		"created_at": doc.CreatedAt.UTC(),
	}
}
