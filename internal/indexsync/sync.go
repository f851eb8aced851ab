// Package indexsync keeps one search document per note and resolves text
// queries back to notes from the Record Store.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/models"
	"github.com/starford/notesight/internal/search"
)

// NoteSchema is the fixed mapping of the notes index.
var NoteSchema = search.Schema{Fields: []search.Field{
	{Name: "title", Type: search.FieldText},
	{Name: "content", Type: search.FieldText},
	{Name: "created_at", Type: search.FieldDate},
}}

// searchFields are queried with equal weight.
var searchFields = []string{"title", "content"}

// RecordLookup resolves note ids against the Record Store. Ids without a
// record are omitted from the result; order is the store's own.
type RecordLookup interface {
	GetByIDs(ctx context.Context, ids []models.NoteID) ([]models.Note, error)
}

// Synchronizer translates note mutations into index mutations and text
// queries into ranked notes. It holds no state beyond its collaborators and
// adds no locking: concurrent writes to the same id race at the engine.
type Synchronizer struct {
	engine  search.Engine
	records RecordLookup
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for notes without created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// New creates a Synchronizer over engine, resolving hits through records.
func New(engine search.Engine, records RecordLookup, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		engine:  engine,
		records: records,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexReady creates the index with NoteSchema if it does not exist.
// It is idempotent; every call costs at least the existence check. An index
// created concurrently by another caller counts as ready.
func (s *Synchronizer) EnsureIndexReady(ctx context.Context) error {
	exists, err := s.engine.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("indexsync: check index: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.engine.CreateIndex(ctx, NoteSchema); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("indexsync: create index: %w", err)
	}
	s.logger.Info("indexsync: index created")
	return nil
}

// Ready reports whether the index exists, without creating it.
func (s *Synchronizer) Ready(ctx context.Context) error {
	exists, err := s.engine.IndexExists(ctx)
	if err != nil {
		return fmt.Errorf("indexsync: check index: %w", err)
	}
	if !exists {
		return fmt.Errorf("indexsync: index: %w", apperr.ErrNotFound)
	}
	return nil
}

// Index bootstraps the index if needed, then upserts the note's document with
// an immediate refresh, so a matching query issued after Index returns sees it.
func (s *Synchronizer) Index(ctx context.Context, note models.Note) error {
	if err := s.EnsureIndexReady(ctx); err != nil {
		return err
	}
	if err := s.engine.Index(ctx, note.ID.DocumentID(), s.document(note), true); err != nil {
		return fmt.Errorf("indexsync: index note %d: %w", note.ID, err)
	}
	s.logger.Debug("indexsync: indexed", slog.Int64("id", int64(note.ID)))
	return nil
}

// Update partially updates the note's existing document. What happens when
// no document exists is up to the engine.
func (s *Synchronizer) Update(ctx context.Context, note models.Note) error {
	if err := s.engine.Update(ctx, note.ID.DocumentID(), s.document(note)); err != nil {
		return fmt.Errorf("indexsync: update note %d: %w", note.ID, err)
	}
	s.logger.Debug("indexsync: updated", slog.Int64("id", int64(note.ID)))
	return nil
}

// Delete removes the note's document. A missing document surfaces as
// apperr.ErrNotFound.
func (s *Synchronizer) Delete(ctx context.Context, id models.NoteID) error {
	if err := s.engine.Delete(ctx, id.DocumentID()); err != nil {
		return fmt.Errorf("indexsync: delete note %d: %w", id, err)
	}
	s.logger.Debug("indexsync: deleted", slog.Int64("id", int64(id)))
	return nil
}

// Search returns at most topK notes matching query, in engine relevance order.
//
// A blank query matches nothing and makes no remote call, and a missing index
// matches nothing. topK must be positive. Hits whose id does not parse or no longer resolves in the Record
// Store are dropped.
func (s *Synchronizer) Search(ctx context.Context, query string, topK int) ([]models.Note, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("indexsync: top_k must be positive, got %d: %w", topK, apperr.ErrInvalidArgument)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Note{}, nil
	}

	hits, err := s.engine.Search(ctx, search.Query{Text: query, Fields: searchFields, Limit: topK})
	if err != nil {
		// Nothing has been indexed yet.
		if errors.Is(err, apperr.ErrNotFound) {
			return []models.Note{}, nil
		}
		return nil, fmt.Errorf("indexsync: search: %w", err)
	}

	ranked := lo.Uniq(lo.FilterMap(hits, func(h search.Hit, _ int) (models.NoteID, bool) {
		id, err := models.ParseNoteID(h.ID)
		if err != nil {
			s.logger.Debug("indexsync: skipping foreign document", slog.String("doc_id", h.ID))
			return 0, false
		}
		return id, true
	}))
	if len(ranked) == 0 {
		return []models.Note{}, nil
	}

	records, err := s.records.GetByIDs(ctx, ranked)
	if err != nil {
		return nil, fmt.Errorf("indexsync: resolve hits: %w", err)
	}
	byID := lo.KeyBy(records, func(n models.Note) models.NoteID { return n.ID })

	out := make([]models.Note, 0, len(ranked))
	for _, id := range ranked {
		n, ok := byID[id]
		if ok {
			out = append(out, n)
			continue
		}
		stale := fmt.Errorf("indexsync: hit %d has no record: %w", id, apperr.ErrNotFound)
		if apperr.Decide(apperr.OpSearchResolve, stale) != apperr.Suppress {
			return nil, stale
		}
		s.logger.Debug("indexsync: dropping stale hit", slog.Int64("id", int64(id)))
	}
	return out, nil
}

// ReindexAll bootstraps the index and indexes every note, calling progress
// after each one. It stops at the first failure and returns how many notes
// were indexed before it.
func (s *Synchronizer) ReindexAll(ctx context.Context, notes []models.Note, progress func(models.Note)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.EnsureIndexReady(ctx); err != nil {
		return 0, err
	}
	for i, n := range notes {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.engine.Index(ctx, n.ID.DocumentID(), s.document(n), true); err != nil {
			return i, fmt.Errorf("indexsync: reindex note %d: %w", n.ID, err)
		}
		if progress != nil {
			progress(n)
		}
	}
	return len(notes), nil
}

func (s *Synchronizer) document(n models.Note) search.Document {
	created := n.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	return search.Document{Title: n.Title, Content: n.Content, CreatedAt: created}
}
