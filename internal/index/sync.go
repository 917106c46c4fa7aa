package index

import (
	"context"
	"log/slog"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/repo"
)

// Sync brings the index up to date with the repository:
//   - new and changed notes are loaded and upserted
//   - notes gone from storage are deleted from the index
func Sync(ctx context.Context, db *DB, nr repo.NotebookRepo, logger *slog.Logger) error {
	infos, err := nr.List(ctx)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	stored := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		stored[info.ID] = struct{}{}

		n, err := nr.Get(ctx, info.ID)
		if err != nil {
			logger.Warn("sync: load failed", slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}
		cs, err := checksum.Note(n)
		if err != nil {
			logger.Warn("sync: digest failed", slog.String("id", info.ID), slog.String("error", err.Error()))
			continue
		}
		if checksums[info.ID] == cs {
			continue
		}
		if err := db.upsertNote(n, cs); err != nil {
			logger.Warn("sync: index failed", slog.String("id", info.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", info.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := stored[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}
