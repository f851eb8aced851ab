package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notesight/internal/apperr"
	"github.com/starford/notesight/internal/models"
)

const noteColumns = `id, title, content, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.Note, error) {
	var n models.Note
	err := s.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// Create inserts a note and returns it with its assigned id and timestamps.
func (db *DB) Create(ctx context.Context, title, content string) (*models.Note, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, title, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: last insert id: %w", err)
	}
	return &models.Note{
		ID:        models.NoteID(id),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns the note with the given id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id models.NoteID) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: note %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return &n, nil
}

// List returns every note, newest first.
func (db *DB) List(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	return collect(rows)
}

// GetByIDs returns the notes whose id is in ids, in primary-key order.
// Ids without a record are omitted.
func (db *DB) GetByIDs(ctx context.Context, ids []models.NoteID) ([]models.Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get notes by id: %w", err)
	}
	return collect(rows)
}

// Update replaces a note's title and content and bumps updated_at.
func (db *DB) Update(ctx context.Context, id models.NoteID, title, content string) (*models.Note, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, updated_at = ?
		WHERE id = ?
	`, title, content, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("store: update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("store: note %d: %w", id, apperr.ErrNotFound)
	}
	return db.Get(ctx, id)
}

// UpdateIf replaces title and content only while the row still holds
// prevTitle and prevContent. A row changed in between yields
// apperr.ErrConflict; a missing row yields apperr.ErrNotFound.
func (db *DB) UpdateIf(ctx context.Context, id models.NoteID, prevTitle, prevContent, title, content string) (*models.Note, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, updated_at = ?
		WHERE id = ? AND title = ? AND content = ?
	`, title, content, time.Now().UTC(), id, prevTitle, prevContent)
	if err != nil {
		return nil, fmt.Errorf("store: update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("store: note %d changed concurrently: %w", id, apperr.ErrConflict)
	}
	return db.Get(ctx, id)
}

// Delete removes a note, or returns apperr.ErrNotFound.
func (db *DB) Delete(ctx context.Context, id models.NoteID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: note %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func collect(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
