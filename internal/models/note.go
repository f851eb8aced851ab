// Package models defines the domain types for notesight.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// NoteID is the Record Store primary key of a note. The same value, in its
// decimal form, identifies the note's document in the search index; no
// constraint links the two stores, the write gateway keeps them in step.
type NoteID int64

// DocumentID returns the search index document identifier for the note.
func (id NoteID) DocumentID() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseNoteID converts a search document identifier back to a NoteID.
func ParseNoteID(s string) (NoteID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse note id %q: %w", s, err)
	}
	return NoteID(v), nil
}

// Note is the canonical note record owned by the Record Store.
type Note struct {
	ID        NoteID    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
