// Package notebook defines the note document model and its JSON codec.
package notebook

import "encoding/json"

// Status is the lifecycle state of a paragraph job.
type Status string

const (
	StatusUnknown  Status = "UNKNOWN"
	StatusReady    Status = "READY"
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusError    Status = "ERROR"
	StatusAbort    Status = "ABORT"
)

// Active reports whether the status describes work that is scheduled or in
// flight. Active statuses never survive a reload.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Paragraph is one unit of work inside a note: a snippet of text plus the
// execution metadata accumulated by whatever ran it.
type Paragraph struct {
	ID           string
	Title        string
	Text         string
	User         string
	Status       Status
	DateCreated  *Timestamp
	DateStarted  *Timestamp
	DateFinished *Timestamp
	DateUpdated  *Timestamp
	Config       map[string]any
	Settings     map[string]any

	// Extra holds fields written by other producers that othala does not
	// model. They survive load and save verbatim.
	Extra map[string]json.RawMessage
}

// Note is the persisted document: an ordered list of paragraphs plus
// opaque display and runtime metadata.
type Note struct {
	ID         string
	Name       string
	Paragraphs []*Paragraph
	Config     map[string]any
	Info       map[string]any

	// Extra carries unmodeled top-level fields through a load/save cycle.
	Extra map[string]json.RawMessage
}

// NoteInfo is the listing summary of a note.
type NoteInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Summary returns the listing entry for n.
func (n *Note) Summary() NoteInfo {
	return NoteInfo{ID: n.ID, Name: n.Name}
}

// paragraphFields is the JSON shape of the modeled paragraph fields.
type paragraphFields struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title,omitempty"`
	Text         string         `json:"text,omitempty"`
	User         string         `json:"user,omitempty"`
	Status       Status         `json:"status,omitempty"`
	DateCreated  *Timestamp     `json:"dateCreated,omitempty"`
	DateStarted  *Timestamp     `json:"dateStarted,omitempty"`
	DateFinished *Timestamp     `json:"dateFinished,omitempty"`
	DateUpdated  *Timestamp     `json:"dateUpdated,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
}

var paragraphKeys = []string{
	"id", "title", "text", "user", "status",
	"dateCreated", "dateStarted", "dateFinished", "dateUpdated",
	"config", "settings",
}

// noteFields is the JSON shape of the modeled note fields.
type noteFields struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Paragraphs []*Paragraph   `json:"paragraphs"`
	Config     map[string]any `json:"config,omitempty"`
	Info       map[string]any `json:"info,omitempty"`
}

var noteKeys = []string{"id", "name", "paragraphs", "config", "info"}

// MarshalJSON encodes the modeled fields and folds Extra back in, so a
// note written by another producer round-trips without losing fields.
func (p *Paragraph) MarshalJSON() ([]byte, error) {
	return mergeExtra(paragraphFields{
		ID:           p.ID,
		Title:        p.Title,
		Text:         p.Text,
		User:         p.User,
		Status:       p.Status,
		DateCreated:  p.DateCreated,
		DateStarted:  p.DateStarted,
		DateFinished: p.DateFinished,
		DateUpdated:  p.DateUpdated,
		Config:       p.Config,
		Settings:     p.Settings,
	}, p.Extra)
}

// UnmarshalJSON decodes the modeled fields and captures everything else in
// Extra.
func (p *Paragraph) UnmarshalJSON(data []byte) error {
	var fields paragraphFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Paragraph{
		ID:           fields.ID,
		Title:        fields.Title,
		Text:         fields.Text,
		User:         fields.User,
		Status:       fields.Status,
		DateCreated:  fields.DateCreated,
		DateStarted:  fields.DateStarted,
		DateFinished: fields.DateFinished,
		DateUpdated:  fields.DateUpdated,
		Config:       fields.Config,
		Settings:     fields.Settings,
		Extra:        splitExtra(raw, paragraphKeys),
	}
	return nil
}

func (n *Note) MarshalJSON() ([]byte, error) {
	paragraphs := n.Paragraphs
	if paragraphs == nil {
		paragraphs = []*Paragraph{}
	}
	return mergeExtra(noteFields{
		ID:         n.ID,
		Name:       n.Name,
		Paragraphs: paragraphs,
		Config:     n.Config,
		Info:       n.Info,
	}, n.Extra)
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var fields noteFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note{
		ID:         fields.ID,
		Name:       fields.Name,
		Paragraphs: fields.Paragraphs,
		Config:     fields.Config,
		Info:       fields.Info,
		Extra:      splitExtra(raw, noteKeys),
	}
	return nil
}

// splitExtra strips the modeled keys from raw and returns the remainder,
// or nil when nothing unmodeled was present.
func splitExtra(raw map[string]json.RawMessage, known []string) map[string]json.RawMessage {
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// mergeExtra encodes the modeled fields and merges extra on top. Modeled
// keys always win over a stale duplicate in extra.
func mergeExtra(fields any, extra map[string]json.RawMessage) ([]byte, error) {
	enc, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return enc, nil
	}
	out := make(map[string]json.RawMessage, len(extra)+8)
	if err := json.Unmarshal(enc, &out); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}
