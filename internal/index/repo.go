package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/notebook"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// UpsertNote flattens n and replaces its row and FTS entry within one
// transaction.
func (db *DB) UpsertNote(n *notebook.Note) error {
	cs, err := checksum.Note(n)
	if err != nil {
		return err
	}
	return db.upsertNote(n, cs)
}

func (db *DB) upsertNote(n *notebook.Note, cs string) error {
	body := noteBody(n)

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (id, name, checksum, paragraphs, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			checksum   = excluded.checksum,
			paragraphs = excluded.paragraphs,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.ID, n.Name, cs, len(n.Paragraphs), body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Name, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note row and its FTS entry.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM notes WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored digest for a note, or empty string when
// the note is not indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the digest of every indexed note keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// noteBody concatenates the searchable text of a note's paragraphs.
func noteBody(n *notebook.Note) string {
	var b strings.Builder
	for _, p := range n.Paragraphs {
		if p == nil {
			continue
		}
		if p.Title != "" {
			b.WriteString(p.Title)
			b.WriteByte('\n')
		}
		if p.Text != "" {
			b.WriteString(p.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
