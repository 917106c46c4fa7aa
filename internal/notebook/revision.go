package notebook

// Revision identifies one checkpoint of a note.
type Revision struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Time    int64  `json:"time"`
}

// EmptyRevision is the sentinel returned by repositories that keep no
// revision history.
var EmptyRevision = Revision{}

// IsEmpty reports whether r is the no-history sentinel.
func (r Revision) IsEmpty() bool {
	return r == Revision{}
}

// Setting describes one tunable property a repository exposes to settings
// UIs.
type Setting struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Selected string   `json:"selected,omitempty"`
	Options  []string `json:"options,omitempty"`
}
