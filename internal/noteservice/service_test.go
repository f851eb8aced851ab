package noteservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/indexsync"
	"github.com/starford/notesight/internal/insights"
	"github.com/starford/notesight/internal/models"
	"github.com/starford/notesight/internal/search"
	"github.com/starford/notesight/internal/store"
	"github.com/starford/notesight/internal/testutil"
)

type recorder struct {
	events []string
}

func (r *recorder) observe(kind string, id models.NoteID) {
	r.events = append(r.events, fmt.Sprintf("%s:%d", kind, id))
}

func setup(t *testing.T, opts ...Option) (*Service, *recorder) {
	t.Helper()
	db := testutil.TestStore(t)
	eng := testutil.TestEngine(t)
	rec := &recorder{}
	opts = append([]Option{WithObserver(rec.observe)}, opts...)
	return NewService(db, indexsync.New(eng, db), opts...), rec
}

func TestCreateNote_SearchableImmediately(t *testing.T) {
	ctx := context.Background()
	svc, rec := setup(t)

	n, err := svc.CreateNote(ctx, "Meeting with Team", "Discussed project deadlines")
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.NotEmpty(t, n.Checksum)

	got, err := svc.Search(ctx, "deadlines", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)
	assert.Equal(t, "Meeting with Team", got[0].Title)

	assert.Equal(t, []string{fmt.Sprintf("note.created:%d", n.ID)}, rec.events)
}

func TestCreateNote_Validation(t *testing.T) {
	svc, rec := setup(t)

	_, err := svc.CreateNote(context.Background(), " ", "body")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = svc.CreateNote(context.Background(), "title", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Empty(t, rec.events)
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	a, err := svc.CreateNote(ctx, "first", "alpha")
	require.NoError(t, err)
	b, err := svc.CreateNote(ctx, "second", "beta")
	require.NoError(t, err)

	got, err := svc.GetNote(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Content)

	_, err = svc.GetNote(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := svc.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "newest first")
}

func TestUpdateNote_ReindexesContent(t *testing.T) {
	ctx := context.Background()
	svc, rec := setup(t)

	n, err := svc.CreateNote(ctx, "Journal", "walked along the river")
	require.NoError(t, err)

	upd, err := svc.UpdateNote(ctx, n.ID, "Journal", "climbed the mountain", n.Checksum)
	require.NoError(t, err)
	assert.NotEqual(t, n.Checksum, upd.Checksum)

	hits, err := svc.Search(ctx, "mountain", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = svc.Search(ctx, "river", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.Contains(t, rec.events, fmt.Sprintf("note.updated:%d", n.ID))
}

func TestUpdateNote_Conflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	n, err := svc.CreateNote(ctx, "t", "c")
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, n.ID, "t", "c2", "stale-checksum")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := svc.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "c", got.Content, "nothing written on conflict")
}

// interleavingStore lets another writer change the note right after the
// gateway has read it.
type interleavingStore struct {
	*store.DB
	once sync.Once
	t    *testing.T
}

func (s *interleavingStore) Get(ctx context.Context, id models.NoteID) (*models.Note, error) {
	n, err := s.DB.Get(ctx, id)
	s.once.Do(func() {
		_, uerr := s.DB.Update(ctx, id, "t", "written by another client")
		require.NoError(s.t, uerr)
	})
	return n, err
}

func TestUpdateNote_ConflictAfterRead(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestStore(t)
	eng := testutil.TestEngine(t)
	svc := NewService(db, indexsync.New(eng, db))

	n, err := svc.CreateNote(ctx, "t", "c")
	require.NoError(t, err)

	racing := NewService(&interleavingStore{DB: db, t: t}, indexsync.New(eng, db))
	_, err = racing.UpdateNote(ctx, n.ID, "t", "lost update", n.Checksum)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := svc.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "written by another client", got.Content)
}

func TestUpdateNote_Missing(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.UpdateNote(context.Background(), 42, "t", "c", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateNote_IndexesNeverIndexedNote(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestStore(t)
	eng := testutil.TestEngine(t)
	svc := NewService(db, indexsync.New(eng, db))

	// Written behind the gateway's back, so there is no document yet.
	n, err := db.Create(ctx, "orphan", "unindexed words")
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, n.ID, "orphan", "freshly indexed words", "")
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "freshly", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDeleteNote_RemovesDocument(t *testing.T) {
	ctx := context.Background()
	svc, rec := setup(t)

	n, err := svc.CreateNote(ctx, "Meeting", "deadlines")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, n.ID))

	hits, err := svc.Search(ctx, "deadlines", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = svc.GetNote(ctx, n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, rec.events, fmt.Sprintf("note.deleted:%d", n.ID))
}

func TestDeleteNote_NeverIndexed(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestStore(t)
	eng := testutil.TestEngine(t)
	syncer := indexsync.New(eng, db)
	svc := NewService(db, syncer)
	require.NoError(t, syncer.EnsureIndexReady(ctx))

	n, err := db.Create(ctx, "orphan", "never indexed")
	require.NoError(t, err)

	assert.NoError(t, svc.DeleteNote(ctx, n.ID))
}

func TestDeleteNote_NeverIndexedPolicyPropagate(t *testing.T) {
	saved := apperr.Policies[apperr.OpGatewayDelete]
	t.Cleanup(func() { apperr.Policies[apperr.OpGatewayDelete] = saved })
	apperr.Policies[apperr.OpGatewayDelete] = apperr.Propagate

	ctx := context.Background()
	db := testutil.TestStore(t)
	syncer := indexsync.New(testutil.TestEngine(t), db)
	svc := NewService(db, syncer)
	require.NoError(t, syncer.EnsureIndexReady(ctx))

	n, err := db.Create(ctx, "orphan", "never indexed")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteNote(ctx, n.ID), apperr.ErrNotFound)
}

func TestDeleteNote_Missing(t *testing.T) {
	svc, rec := setup(t)
	assert.ErrorIs(t, svc.DeleteNote(context.Background(), 7), apperr.ErrNotFound)
	assert.Empty(t, rec.events)
}

// brokenDelete fails every index delete with an engine error.
type brokenDelete struct {
	search.Engine
}

func (brokenDelete) Delete(context.Context, string) error {
	return fmt.Errorf("search: delete: %w", apperr.ErrServiceUnavailable)
}

func TestDeleteNote_IndexFailurePropagates(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestStore(t)
	eng := brokenDelete{Engine: testutil.TestEngine(t)}
	svc := NewService(db, indexsync.New(eng, db))

	n, err := svc.CreateNote(ctx, "t", "c")
	require.NoError(t, err)

	err = svc.DeleteNote(ctx, n.ID)
	assert.ErrorIs(t, err, apperr.ErrServiceUnavailable)
}

func TestSearch_Limits(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, WithSearchLimits(2, 3))
	for i := range 5 {
		_, err := svc.CreateNote(ctx, fmt.Sprintf("note %d", i), "common word")
		require.NoError(t, err)
	}

	got, err := svc.Search(ctx, "common", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2, "zero means default")

	got, err = svc.Search(ctx, "common", 100)
	require.NoError(t, err)
	assert.Len(t, got, 3, "clamped to max")

	_, err = svc.Search(ctx, "common", -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

type fixedLLM struct {
	reply string
	err   error
	calls int
}

func (f *fixedLLM) Generate(context.Context, string, insights.Params) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestInsights(t *testing.T) {
	ctx := context.Background()
	llm := &fixedLLM{reply: "Insights: schedule a weekly review"}
	svc, _ := setup(t, WithInsights(insights.NewGenerator(llm, insights.DefaultParams, nil)))

	out, err := svc.Insights(ctx)
	require.NoError(t, err)
	assert.Equal(t, insights.EmptyMessage, out)
	assert.Zero(t, llm.calls)

	_, err = svc.CreateNote(ctx, "Meeting", "deadlines")
	require.NoError(t, err)

	out, err = svc.Insights(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Insights from your indexed notes:\n\nschedule a weekly review", out)

	llm.err = errors.New("down")
	out, err = svc.Insights(ctx)
	require.NoError(t, err)
	assert.Equal(t, insights.FallbackMessage, out)
}

func TestInsights_NotConfigured(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Insights(context.Background())
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestStore(t)
	for _, body := range []string{"first body", "second body"} {
		_, err := db.Create(ctx, "t", body)
		require.NoError(t, err)
	}
	svc := NewService(db, indexsync.New(testutil.TestEngine(t), db))

	count, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, svc.Ready(ctx))

	hits, err := svc.Search(ctx, "body", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
