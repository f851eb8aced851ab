// Package search is the boundary to the full-text engine holding one document
// per note. Two engines implement it: a remote Elasticsearch cluster and an
// embedded Bleve index.
package search

import (
	"context"
	"time"
)

// FieldType is the index mapping type of a document field.
type FieldType string

const (
	FieldText FieldType = "text" // full-text analyzed
	FieldDate FieldType = "date" // not analyzed
)

// Field is one entry of an index schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the fixed mapping applied when an index is created.
type Schema struct {
	Fields []Field
}

// Document is the indexed representation of a note.
type Document struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Query is a relevance query over Fields with equal field weighting.
type Query struct {
	Text   string
	Fields []string
	Limit  int
}

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float64
}

// Engine is the Search Index Client. Each method is a single remote call
// against the index the engine was constructed for.
//
// Errors wrap the taxonomy in internal/apperr: ErrServiceUnavailable when the
// engine cannot be reached or fails, ErrNotFound when an update or delete
// target is absent, ErrAlreadyExists when CreateIndex finds an existing index.
type Engine interface {
	IndexExists(ctx context.Context) (bool, error)
	CreateIndex(ctx context.Context, schema Schema) error
	// Index upserts doc under id. With refresh the document is searchable
	// before Index returns.
	Index(ctx context.Context, id string, doc Document, refresh bool) error
	// Update performs a partial update of the document stored under id.
	Update(ctx context.Context, id string, doc Document) error
	Delete(ctx context.Context, id string) error
	// Search returns at most q.Limit hits in engine relevance order.
	Search(ctx context.Context, q Query) ([]Hit, error)
	Close() error
}

var (
	_ Engine = (*Elastic)(nil)
	_ Engine = (*Bleve)(nil)
)
