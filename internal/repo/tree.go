package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/storage"
)

// TreeRepo is the concrete NotebookRepo over a storage.Tree.
type TreeRepo struct {
	tree   storage.Tree
	res    Resolver
	logger *slog.Logger
}

// NewTreeRepo idempotently ensures the notebook root container and returns
// the repository.
func NewTreeRepo(ctx context.Context, tree storage.Tree, scope string, logger *slog.Logger) (*TreeRepo, error) {
	r := &TreeRepo{tree: tree, res: NewResolver(scope), logger: logger}
	if err := tree.EnsureDir(ctx, r.res.Root()); err != nil {
		return nil, &apperr.IOError{Op: "init", Err: err}
	}
	return r, nil
}

// List enumerates the notebook container. A child that cannot be loaded is
// logged and skipped; one corrupt document never hides the rest.
func (r *TreeRepo) List(ctx context.Context) ([]notebook.NoteInfo, error) {
	entries, err := r.tree.List(ctx, r.res.Root())
	if err != nil {
		return nil, &apperr.IOError{Op: "list", Err: err}
	}
	infos := make([]notebook.NoteInfo, 0, len(entries))
	for _, e := range entries {
		if e.Kind != storage.KindContainer {
			continue
		}
		ok, err := r.tree.Exists(ctx, r.res.NoteFile(e.Name))
		if err != nil {
			r.logger.Warn("listing note", slog.String("id", e.Name), slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		n, err := r.Get(ctx, e.Name)
		if err != nil {
			r.logger.Error("loading note during list", slog.String("id", e.Name), slog.String("error", err.Error()))
			continue
		}
		infos = append(infos, n.Summary())
	}
	return infos, nil
}

// Get re-reads the note from the backend on every call.
func (r *TreeRepo) Get(ctx context.Context, id string) (*notebook.Note, error) {
	rc, err := r.tree.OpenRead(ctx, r.res.NoteFile(id))
	if err != nil {
		return nil, &apperr.IOError{Op: "get", Note: id, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &apperr.IOError{Op: "get", Note: id, Err: err}
	}
	n, err := notebook.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("repo: note %s: %w", id, err)
	}
	// The container name is the note's identity: a copied or hand-renamed
	// container reads back under the id it is addressed by.
	n.ID = id
	return n, nil
}

// Save writes the full document: ensure the note's container, then replace
// note.json wholesale. Saving over an existing note overwrites it.
func (r *TreeRepo) Save(ctx context.Context, n *notebook.Note) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("repo: save: note has no id")
	}
	data, err := notebook.Serialize(n)
	if err != nil {
		return fmt.Errorf("repo: note %s: %w", n.ID, err)
	}
	if err := r.tree.EnsureDir(ctx, r.res.NoteDir(n.ID)); err != nil {
		return &apperr.IOError{Op: "save", Note: n.ID, Err: err}
	}
	if err := r.tree.Write(ctx, r.res.NoteFile(n.ID), data); err != nil {
		return &apperr.IOError{Op: "save", Note: n.ID, Err: err}
	}
	return nil
}

// Remove deletes the note's container subtree depth-first. Every step
// treats absence as success, so a half-finished remove can be retried.
func (r *TreeRepo) Remove(ctx context.Context, id string) error {
	if err := r.removeTree(ctx, r.res.NoteDir(id), storage.KindContainer); err != nil {
		return &apperr.IOError{Op: "remove", Note: id, Err: err}
	}
	return nil
}

func (r *TreeRepo) removeTree(ctx context.Context, p string, kind storage.Kind) error {
	if kind == storage.KindLeaf {
		return r.tree.DeleteIfExists(ctx, p, storage.KindLeaf)
	}
	entries, err := r.tree.List(ctx, p)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := r.removeTree(ctx, path.Join(p, e.Name), e.Kind); err != nil {
			return err
		}
	}
	return r.tree.DeleteIfExists(ctx, p, storage.KindContainer)
}

// Checkpoint is not supported by tree storage: it logs and returns the
// empty revision so revision-unaware callers proceed untouched.
func (r *TreeRepo) Checkpoint(ctx context.Context, id, message string) (notebook.Revision, error) {
	r.logger.Warn("checkpoint not supported", slog.String("note", id))
	return notebook.EmptyRevision, nil
}

// GetByRevision is not supported by tree storage.
func (r *TreeRepo) GetByRevision(ctx context.Context, id, revID string) (*notebook.Note, error) {
	r.logger.Warn("revision get not supported", slog.String("note", id), slog.String("revision", revID))
	return nil, nil
}

// RevisionHistory is not supported by tree storage.
func (r *TreeRepo) RevisionHistory(ctx context.Context, id string) ([]notebook.Revision, error) {
	r.logger.Warn("revision history not supported", slog.String("note", id))
	return nil, nil
}

// SetNoteRevision is not supported by tree storage.
func (r *TreeRepo) SetNoteRevision(ctx context.Context, id, revID string) (*notebook.Note, error) {
	r.logger.Warn("set revision not supported", slog.String("note", id), slog.String("revision", revID))
	return nil, nil
}

// Settings: tree storage exposes nothing tunable at runtime.
func (r *TreeRepo) Settings(ctx context.Context) []notebook.Setting {
	r.logger.Warn("settings not supported")
	return nil
}

// UpdateSettings is not supported by tree storage.
func (r *TreeRepo) UpdateSettings(ctx context.Context, settings map[string]string) {
	r.logger.Warn("settings update not supported")
}

// Close releases the backend. Safe to call repeatedly.
func (r *TreeRepo) Close() error {
	return r.tree.Close()
}
