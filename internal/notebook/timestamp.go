package notebook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// timestampLayouts are tried in order when decoding a string timestamp.
// The last two cover notes written by older schema versions.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006 15:04:05",
}

// Timestamp is a point in time that tolerates every date encoding found in
// persisted notes: RFC 3339 strings, two legacy wall-clock layouts, and
// epoch milliseconds as a JSON number or a numeric string. It always
// re-encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t for use in a note.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return t.parse(s)
	}
	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		t.Time = time.UnixMilli(millis).UTC()
		return nil
	}
	// Some writers emit epoch millis with a fractional part.
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		t.Time = time.UnixMilli(int64(f)).UTC()
		return nil
	}
	return fmt.Errorf("notebook: unrecognized timestamp %s", data)
}

func (t *Timestamp) parse(s string) error {
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(millis).UTC()
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("notebook: unrecognized timestamp %q", s)
}
