package repo

import "path"

const (
	// NotebookDir is the fixed container all notes live below.
	NotebookDir = "notebook"
	// NoteFileName is the leaf every note document is stored under.
	NoteFileName = "note.json"
)

// Resolver maps note ids onto backend tree paths. With a scope configured
// the layout is scope/notebook/{id}/note.json, otherwise
// notebook/{id}/note.json.
type Resolver struct {
	scope string
}

// NewResolver returns a resolver for the given scope segment; blank means
// unscoped.
func NewResolver(scope string) Resolver {
	return Resolver{scope: scope}
}

// Root returns the notebook container path.
func (r Resolver) Root() string {
	if r.scope == "" {
		return NotebookDir
	}
	return path.Join(r.scope, NotebookDir)
}

// NoteDir returns the container path of one note.
func (r Resolver) NoteDir(id string) string {
	return path.Join(r.Root(), id)
}

// NoteFile returns the leaf path of one note's document.
func (r Resolver) NoteFile(id string) string {
	return path.Join(r.NoteDir(id), NoteFileName)
}
