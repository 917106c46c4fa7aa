// Package noteservice coordinates the notebook repository, the search
// index and the event stream behind one API-facing surface.
package noteservice

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/repo"
)

// Events receives note lifecycle notifications after successful writes.
type Events interface {
	PublishNoteEvent(kind, id string)
}

// Service coordinates repository and index operations.
type Service struct {
	repo   repo.NotebookRepo
	db     index.NoteIndex
	events Events
}

// NewService creates a new note service. events may be nil when no
// stream is attached (the MCP entrypoint runs without one).
func NewService(r repo.NotebookRepo, db index.NoteIndex, events Events) *Service {
	return &Service{repo: r, db: db, events: events}
}

// ListNotes enumerates the stored notes.
func (s *Service) ListNotes(ctx context.Context) ([]notebook.NoteInfo, error) {
	return s.repo.List(ctx)
}

// GetNote loads a note and computes its content checksum, used by the
// API as an ETag for optimistic concurrency.
func (s *Service) GetNote(ctx context.Context, id string) (*notebook.Note, string, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	cs, err := checksum.Note(n)
	if err != nil {
		return nil, "", err
	}
	return n, cs, nil
}

// CreateNote stores a new note. A note without an id is assigned one; an
// explicit id that is already taken is rejected.
func (s *Service) CreateNote(ctx context.Context, n *notebook.Note) (*notebook.Note, string, error) {
	if n == nil {
		return nil, "", errors.New("noteservice: create: nil note")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	} else {
		_, err := s.repo.Get(ctx, n.ID)
		switch {
		case err == nil:
			return nil, "", apperr.ErrAlreadyExists
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return nil, "", err
		}
	}
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, "", err
	}
	cs, err := s.finishWrite(n, "created")
	if err != nil {
		return nil, "", err
	}
	return n, cs, nil
}

// SaveNote overwrites a note with optimistic concurrency: a non-empty
// ifMatch must equal the checksum of the currently stored content. An
// empty ifMatch writes unconditionally, creating the note if absent.
func (s *Service) SaveNote(ctx context.Context, n *notebook.Note, ifMatch string) (*notebook.Note, string, error) {
	if n == nil {
		return nil, "", errors.New("noteservice: save: nil note")
	}
	if ifMatch != "" {
		current, err := s.repo.Get(ctx, n.ID)
		if err != nil {
			return nil, "", err
		}
		cs, err := checksum.Note(current)
		if err != nil {
			return nil, "", err
		}
		if ifMatch != cs {
			return nil, "", apperr.ErrConflict
		}
	}
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, "", err
	}
	cs, err := s.finishWrite(n, "updated")
	if err != nil {
		return nil, "", err
	}
	return n, cs, nil
}

// DeleteNote removes a note from the repository and the index. Deleting
// an absent note succeeds.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := s.repo.Remove(ctx, id); err != nil {
		return err
	}
	if err := s.db.DeleteNote(id); err != nil {
		return err
	}
	if s.events != nil {
		s.events.PublishNoteEvent("deleted", id)
	}
	return nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Checkpoint asks the repository to record a revision of the note.
func (s *Service) Checkpoint(ctx context.Context, id, message string) (notebook.Revision, error) {
	return s.repo.Checkpoint(ctx, id, message)
}

// RevisionHistory lists the note's recorded revisions.
func (s *Service) RevisionHistory(ctx context.Context, id string) ([]notebook.Revision, error) {
	return s.repo.RevisionHistory(ctx, id)
}

// GetNoteByRevision loads a note frozen at a revision.
func (s *Service) GetNoteByRevision(ctx context.Context, id, revID string) (*notebook.Note, error) {
	return s.repo.GetByRevision(ctx, id, revID)
}

// SetNoteRevision pins a note back to a revision.
func (s *Service) SetNoteRevision(ctx context.Context, id, revID string) (*notebook.Note, error) {
	return s.repo.SetNoteRevision(ctx, id, revID)
}

// Settings describes repository-specific tunables.
func (s *Service) Settings(ctx context.Context) []notebook.Setting {
	return s.repo.Settings(ctx)
}

// UpdateSettings applies settings changes to the repository.
func (s *Service) UpdateSettings(ctx context.Context, settings map[string]string) {
	s.repo.UpdateSettings(ctx, settings)
}

// finishWrite indexes a freshly written note and notifies the stream.
func (s *Service) finishWrite(n *notebook.Note, kind string) (string, error) {
	if err := s.db.UpsertNote(n); err != nil {
		return "", err
	}
	cs, err := checksum.Note(n)
	if err != nil {
		return "", err
	}
	if s.events != nil {
		s.events.PublishNoteEvent(kind, n.ID)
	}
	return cs, nil
}
