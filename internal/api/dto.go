package api

import (
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
)

// CreateNoteRequest is the request body for creating a note. The id is
// optional; an empty one is assigned by the server.
type CreateNoteRequest struct {
	ID         string                `json:"id,omitempty" example:"2FX9K3QRT"`
	Name       string                `json:"name" example:"Weekly metrics" validate:"required"`
	Paragraphs []*notebook.Paragraph `json:"paragraphs,omitempty"`
}

// CheckpointRequest is the request body for recording a note revision.
type CheckpointRequest struct {
	Message string `json:"message" example:"before schema change"`
}

// Note is the full note document (aliased from the domain layer).
type Note = notebook.Note

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []notebook.NoteInfo `json:"notes" validate:"required"`
	Total int                 `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// RevisionListResponse wraps a note's revision history.
type RevisionListResponse struct {
	Revisions []notebook.Revision `json:"revisions" validate:"required"`
}

// SettingsResponse wraps the repository settings listing.
type SettingsResponse struct {
	Settings []notebook.Setting `json:"settings" validate:"required"`
}
