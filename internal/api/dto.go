package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notesight/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Meeting with Team" validate:"required"`
	Content string `json:"content" example:"Discussed project deadlines" validate:"required"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title   string `json:"title" example:"Meeting with Team" validate:"required"`
	Content string `json:"content" example:"Moved the deadline to Friday" validate:"required"`
}

// Validate implements validation.Validatable.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Content, validation.Required),
	)
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteDetail `json:"notes" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results in relevance order.
type SearchResponse struct {
	Results []NoteDetail `json:"results" validate:"required"`
}

// InsightsResponse carries generated insight text.
type InsightsResponse struct {
	Insights string `json:"insights" example:"Insights from your indexed notes:\n\n..." validate:"required"`
}
