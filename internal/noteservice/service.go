// Package noteservice is the single write gateway for notes: every mutation
// goes to the Record Store first and then to the index synchronizer, so the
// two stores stay in step regardless of which surface (REST, MCP, CLI) made it.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/checksum"
	"github.com/starford/notesight/internal/indexsync"
	"github.com/starford/notesight/internal/insights"
	"github.com/starford/notesight/internal/models"
	"github.com/starford/notesight/internal/store"
)

// Event kinds reported to the observer.
const (
	EventCreated = "note.created"
	EventUpdated = "note.updated"
	EventDeleted = "note.deleted"
)

// Default search limits.
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        models.NoteID `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Checksum  string        `json:"checksum"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Observer is notified after a mutation has reached both stores.
type Observer func(kind string, id models.NoteID)

// Service coordinates Record Store and index operations.
type Service struct {
	store    store.NoteStore
	sync     *indexsync.Synchronizer
	insights *insights.Generator
	observer Observer
	logger   *slog.Logger

	defaultTopK int
	maxTopK     int
}

// Option configures a Service.
type Option func(*Service)

// WithInsights enables Insights.
func WithInsights(g *insights.Generator) Option {
	return func(s *Service) { s.insights = g }
}

// WithObserver registers fn for change events.
func WithObserver(fn Observer) Option {
	return func(s *Service) { s.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSearchLimits sets the default and maximum number of search results.
// Non-positive values keep the built-in defaults.
func WithSearchLimits(defaultTopK, maxTopK int) Option {
	return func(s *Service) {
		if defaultTopK > 0 {
			s.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			s.maxTopK = maxTopK
		}
	}
}

// NewService creates a new note service.
func NewService(st store.NoteStore, syncer *indexsync.Synchronizer, opts ...Option) *Service {
	s := &Service{
		store:       st,
		sync:        syncer,
		logger:      slog.Default(),
		defaultTopK: DefaultTopK,
		maxTopK:     MaxTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultTopK > s.maxTopK {
		s.defaultTopK = s.maxTopK
	}
	return s
}

// CreateNote stores a new note and indexes it. An index failure is returned
// to the caller; the record is kept and a later reindex repairs the index.
func (s *Service) CreateNote(ctx context.Context, title, content string) (*NoteDetail, error) {
	if err := validate(title, content); err != nil {
		return nil, err
	}
	n, err := s.store.Create(ctx, title, content)
	if err != nil {
		return nil, err
	}
	if err := s.sync.Index(ctx, *n); err != nil {
		return nil, fmt.Errorf("noteservice: note %d stored but not indexed: %w", n.ID, err)
	}
	s.notify(EventCreated, n.ID)
	return detail(*n), nil
}

// GetNote reads a note by id.
func (s *Service) GetNote(ctx context.Context, id models.NoteID) (*NoteDetail, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail(*n), nil
}

// ListNotes returns every note, newest first.
func (s *Service) ListNotes(ctx context.Context) ([]NoteDetail, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NoteDetail, len(notes))
	for i, n := range notes {
		out[i] = *detail(n)
	}
	return out, nil
}

// UpdateNote replaces title and content. A non-empty ifMatch must equal the
// current checksum, otherwise apperr.ErrConflict is returned and nothing is
// written.
func (s *Service) UpdateNote(ctx context.Context, id models.NoteID, title, content, ifMatch string) (*NoteDetail, error) {
	if err := validate(title, content); err != nil {
		return nil, err
	}
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var n *models.Note
	if ifMatch == "" {
		n, err = s.store.Update(ctx, id, title, content)
	} else {
		if ifMatch != checksum.Note(existing.Title, existing.Content) {
			return nil, apperr.ErrConflict
		}
		// The write re-checks the row, so a change landing after the Get
		// above still conflicts.
		n, err = s.store.UpdateIf(ctx, id, existing.Title, existing.Content, title, content)
	}
	if err != nil {
		return nil, err
	}
	if err := s.sync.Update(ctx, *n); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("noteservice: note %d updated but not reindexed: %w", n.ID, err)
		}
		// Never indexed: upsert the full document instead.
		if err := s.sync.Index(ctx, *n); err != nil {
			return nil, fmt.Errorf("noteservice: note %d updated but not indexed: %w", n.ID, err)
		}
	}
	s.notify(EventUpdated, n.ID)
	return detail(*n), nil
}

// DeleteNote removes a note from the Record Store, then its document from the
// index. A document that was never indexed is not an error.
func (s *Service) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.sync.Delete(ctx, id); err != nil {
		if apperr.Decide(apperr.OpGatewayDelete, err) != apperr.Suppress {
			return fmt.Errorf("noteservice: note %d deleted but still indexed: %w", id, err)
		}
		s.logger.Info("noteservice: deleted note had no index document",
			slog.Int64("id", int64(id)),
			slog.String("error", err.Error()))
	}
	s.notify(EventDeleted, id)
	return nil
}

// Search runs a full-text query. limit 0 means the default; larger values are
// clamped to the maximum; negative values are rejected.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]NoteDetail, error) {
	switch {
	case limit < 0:
		return nil, fmt.Errorf("noteservice: limit must not be negative: %w", apperr.ErrInvalidArgument)
	case limit == 0:
		limit = s.defaultTopK
	case limit > s.maxTopK:
		limit = s.maxTopK
	}
	notes, err := s.sync.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NoteDetail, len(notes))
	for i, n := range notes {
		out[i] = *detail(n)
	}
	return out, nil
}

// Insights generates insight text over every note. An unavailable model
// yields the fallback message under the default insights policy.
func (s *Service) Insights(ctx context.Context) (string, error) {
	if s.insights == nil {
		return "", fmt.Errorf("noteservice: insights not configured: %w", apperr.ErrConfiguration)
	}
	notes, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	return s.insights.Generate(ctx, notes)
}

// Reindex rebuilds every index document from the Record Store.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	notes, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return s.sync.ReindexAll(ctx, notes, func(n models.Note) {
		s.logger.Info("noteservice: reindexed note",
			slog.Int64("id", int64(n.ID)),
			slog.String("title", n.Title))
	})
}

// Ready reports whether the search index exists.
func (s *Service) Ready(ctx context.Context) error {
	return s.sync.Ready(ctx)
}

func (s *Service) notify(kind string, id models.NoteID) {
	if s.observer != nil {
		s.observer(kind, id)
	}
}

func validate(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required: %w", apperr.ErrInvalidArgument)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required: %w", apperr.ErrInvalidArgument)
	}
	return nil
}

func detail(n models.Note) *NoteDetail {
	return &NoteDetail{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Checksum:  checksum.Note(n.Title, n.Content),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
