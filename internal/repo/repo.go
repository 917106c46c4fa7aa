// Package repo implements the notebook repository: one note per storage
// container, persisted as pretty-printed JSON.
package repo

import (
	"context"

	"github.com/starford/othala/internal/notebook"
)

// NotebookRepo is the storage contract for notes. Implementations without
// revision support still answer every call: the revision and settings
// operations degrade to documented sentinel results instead of errors, so
// revision-unaware callers work against any backend.
type NotebookRepo interface {
	// List enumerates stored notes best-effort: an entry that cannot be
	// loaded is skipped, never fatal.
	List(ctx context.Context) ([]notebook.NoteInfo, error)
	// Get loads one note by id, re-reading the backend on every call.
	Get(ctx context.Context, id string) (*notebook.Note, error)
	// GetByRevision loads a note frozen at a revision. Repositories
	// without history return (nil, nil).
	GetByRevision(ctx context.Context, id, revID string) (*notebook.Note, error)
	// Save persists the full note, replacing any previous content.
	Save(ctx context.Context, n *notebook.Note) error
	// Remove deletes the note's whole container subtree. Removing an
	// absent note succeeds.
	Remove(ctx context.Context, id string) error
	// Checkpoint records a named revision. Repositories without history
	// return the empty revision.
	Checkpoint(ctx context.Context, id, message string) (notebook.Revision, error)
	// RevisionHistory lists a note's revisions. May be empty.
	RevisionHistory(ctx context.Context, id string) ([]notebook.Revision, error)
	// SetNoteRevision pins a note back to a revision and returns the
	// result, or (nil, nil) without history support.
	SetNoteRevision(ctx context.Context, id, revID string) (*notebook.Note, error)
	// Settings describes repository-specific tunables. May be empty.
	Settings(ctx context.Context) []notebook.Setting
	// UpdateSettings applies settings changes.
	UpdateSettings(ctx context.Context, settings map[string]string)
	// Close releases backend resources. Idempotent.
	Close() error
}
