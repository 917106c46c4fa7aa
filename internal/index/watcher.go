package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/repo"
)

// reconcileDelay batches rename storms (directory moves, restores) into a
// single reconciliation pass.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the filesystem backend root and
// keeps the index current when note documents change behind the server's
// back: another process writing the same directory, a git pull, a restore
// from backup. It calls cb (if non-nil) after each successful index
// mutation and blocks until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list, including note containers that appear fully formed (moved into
// the tree). Rename events trigger a reconciliation pass that removes
// stale index entries whose notes no longer exist in the repository.
func Watch(ctx context.Context, db *DB, nr repo.NotebookRepo, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, nr, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any note documents already in the new directory.
					indexNewDir(ctx, db, nr, root, absPath, logger, cb)
					continue
				}
			}

			// fsnotify fires Rename on the OLD path only. The new path
			// will arrive as a separate Create event (if it stays
			// within a watched dir). Renames also land on note
			// containers, not just documents, so always schedule a
			// short reconciliation pass to catch the stragglers.
			if ev.Op&fsnotify.Rename != 0 {
				if id := noteIDFromPath(root, absPath); id != "" {
					if delErr := db.DeleteNote(id); delErr != nil {
						logger.Warn("watcher: rename delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					} else {
						logger.Debug("watcher: rename old deleted", slog.String("id", id))
						if cb != nil {
							cb("deleted", id)
						}
					}
				}
				scheduleReconcile()
				continue
			}

			// Only note documents matter from here on.
			id := noteIDFromPath(root, absPath)
			if id == "" {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				n, loadErr := nr.Get(ctx, id)
				if loadErr != nil {
					logger.Warn("watcher: load failed", slog.String("id", id), slog.String("error", loadErr.Error()))
					continue
				}
				if idxErr := db.UpsertNote(n); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups: finds index
// entries without a corresponding note in the repository and removes
// them, and re-indexes notes whose content no longer matches the
// recorded checksum.
func reconcile(ctx context.Context, db *DB, nr repo.NotebookRepo, logger *slog.Logger, cb EventCallback) {
	indexed, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	infos, err := nr.List(ctx)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	present := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		present[info.ID] = struct{}{}
	}

	for id := range indexed {
		if _, ok := present[id]; !ok {
			if delErr := db.DeleteNote(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}
		}
	}

	for _, info := range infos {
		n, loadErr := nr.Get(ctx, info.ID)
		if loadErr != nil {
			continue
		}
		cs, csErr := checksum.Note(n)
		if csErr != nil {
			continue
		}
		prev, existed := indexed[info.ID]
		if existed && prev == cs {
			continue
		}
		if idxErr := db.upsertNote(n, cs); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("id", info.ID))
			if cb != nil {
				kind := "updated"
				if !existed {
					kind = "created"
				}
				cb(kind, info.ID)
			}
		}
	}
}

// indexNewDir indexes any note documents found in a newly created directory.
func indexNewDir(ctx context.Context, db *DB, nr repo.NotebookRepo, root, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		id := noteIDFromPath(root, path)
		if id == "" {
			return nil
		}
		n, loadErr := nr.Get(ctx, id)
		if loadErr != nil {
			return nil
		}
		if idxErr := db.UpsertNote(n); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("id", id))
			if cb != nil {
				cb("created", id)
			}
		}
		return nil
	})
}

// noteIDFromPath maps an absolute event path to a note id when the path
// is a note document, i.e. ends in notebook/{id}/note.json. Anything
// else returns "".
func noteIDFromPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return ""
	}
	if parts[len(parts)-1] != repo.NoteFileName || parts[len(parts)-3] != repo.NotebookDir {
		return ""
	}
	return parts[len(parts)-2]
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
