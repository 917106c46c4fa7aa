package notebook

import (
	"encoding/json"
	"fmt"

	"github.com/starford/othala/internal/apperr"
)

// Serialize encodes n in its on-disk representation: pretty-printed JSON
// with stable key order.
func Serialize(n *Note) ([]byte, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("notebook: encode %s: %w: %v", n.ID, apperr.ErrUnencodableNote, err)
	}
	return data, nil
}

// Deserialize parses the on-disk form of a note. The status sanitizer runs
// before the note is returned; callers never see a paragraph that still
// claims in-flight work.
func Deserialize(data []byte) (*Note, error) {
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("notebook: parse note: %w: %v", apperr.ErrCorruptNote, err)
	}
	sanitize(&n)
	return &n, nil
}

// sanitize rewrites in-flight paragraph statuses to ABORT. Whatever was
// executing a paragraph did not survive the round trip through storage.
func sanitize(n *Note) {
	for _, p := range n.Paragraphs {
		if p != nil && p.Status.Active() {
			p.Status = StatusAbort
		}
	}
}
