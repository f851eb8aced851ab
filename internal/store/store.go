package store

import (
	"context"

	"github.com/starford/notesight/internal/models"
)

// NoteStore defines the Record Store operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteStore interface {
	Create(ctx context.Context, title, content string) (*models.Note, error)
	Get(ctx context.Context, id models.NoteID) (*models.Note, error)
	List(ctx context.Context) ([]models.Note, error)
	GetByIDs(ctx context.Context, ids []models.NoteID) ([]models.Note, error)
	Update(ctx context.Context, id models.NoteID, title, content string) (*models.Note, error)
	UpdateIf(ctx context.Context, id models.NoteID, prevTitle, prevContent, title, content string) (*models.Note, error)
	Delete(ctx context.Context, id models.NoteID) error
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)
