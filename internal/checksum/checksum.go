// Package checksum computes the content digests used for optimistic
// concurrency (If-Match) and index change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/othala/internal/notebook"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note digests a note's serialized form. Two notes with the same digest
// are byte-identical on disk.
func Note(n *notebook.Note) (string, error) {
	data, err := notebook.Serialize(n)
	if err != nil {
		return "", err
	}
	return Sum(data), nil
}
