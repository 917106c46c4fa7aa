package notebook

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
)

const legacyNoteDoc = `{
  "id": "2FX9K3QRT",
  "name": "Weekly metrics",
  "paragraphs": [
    {
      "id": "p1",
      "text": "%sql select 1",
      "status": "RUNNING",
      "dateCreated": "Jul 4, 2016 1:42:07 PM",
      "results": {"code": "SUCCESS", "msg": [{"type": "TABLE", "data": "1"}]}
    },
    {
      "id": "p2",
      "text": "done",
      "status": "FINISHED"
    }
  ],
  "config": {"looknfeel": "default"},
  "info": {},
  "noteForms": {"country": {"defaultValue": "NL"}}
}`

func TestDeserializeSanitizesActiveStatuses(t *testing.T) {
	cases := []struct {
		name string
		in   Status
		want Status
	}{
		{"pending aborts", StatusPending, StatusAbort},
		{"running aborts", StatusRunning, StatusAbort},
		{"ready survives", StatusReady, StatusReady},
		{"finished survives", StatusFinished, StatusFinished},
		{"error survives", StatusError, StatusError},
		{"abort survives", StatusAbort, StatusAbort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := `{"id":"n","paragraphs":[{"id":"p","status":"` + string(tc.in) + `"}]}`
			n, err := Deserialize([]byte(doc))
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if got := n.Paragraphs[0].Status; got != tc.want {
				t.Errorf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeserializeCorrupt(t *testing.T) {
	cases := []string{
		`{not json`,
		`"a bare string"`,
		`{"paragraphs": "not an array"}`,
	}
	for _, doc := range cases {
		_, err := Deserialize([]byte(doc))
		if !errors.Is(err, apperr.ErrCorruptNote) {
			t.Errorf("Deserialize(%q): err = %v, want ErrCorruptNote", doc, err)
		}
	}
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	n, err := Deserialize([]byte(legacyNoteDoc))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if n.ID != "2FX9K3QRT" || n.Name != "Weekly metrics" {
		t.Fatalf("modeled fields wrong: id=%q name=%q", n.ID, n.Name)
	}
	if len(n.Paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(n.Paragraphs))
	}
	if n.Paragraphs[0].Status != StatusAbort {
		t.Errorf("running paragraph should load as ABORT, got %s", n.Paragraphs[0].Status)
	}
	if _, ok := n.Extra["noteForms"]; !ok {
		t.Error("unmodeled note field missing from Extra")
	}
	if _, ok := n.Paragraphs[0].Extra["results"]; !ok {
		t.Error("unmodeled paragraph field missing from Extra")
	}

	out, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for _, want := range []string{`"noteForms"`, `"results"`, `"looknfeel"`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("serialized note lost %s", want)
		}
	}

	// The second pass parses what the first pass wrote.
	again, err := Deserialize(out)
	if err != nil {
		t.Fatalf("Deserialize round trip: %v", err)
	}
	if again.ID != n.ID || len(again.Paragraphs) != len(n.Paragraphs) {
		t.Errorf("round trip drifted: %+v", again)
	}
}

func TestSerializePretty(t *testing.T) {
	n := &Note{ID: "n1", Name: "pretty"}
	out, err := Serialize(n)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.HasPrefix(string(out), "{\n  \"") {
		t.Errorf("output is not indented: %q", out)
	}
	if !json.Valid(out) {
		t.Error("output is not valid JSON")
	}
}

func TestMarshalEmptyParagraphsAsArray(t *testing.T) {
	out, err := json.Marshal(&Note{ID: "n1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"paragraphs":[]`) {
		t.Errorf("nil paragraphs should encode as an empty array: %s", out)
	}
}

func TestMarshalModeledKeysWinOverExtra(t *testing.T) {
	n := &Note{
		ID:    "fresh",
		Extra: map[string]json.RawMessage{"id": json.RawMessage(`"stale"`)},
	}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != "fresh" {
		t.Errorf("id = %q, want the modeled value", decoded.ID)
	}
}

func TestSummary(t *testing.T) {
	n := &Note{ID: "n1", Name: "summary"}
	info := n.Summary()
	if info.ID != "n1" || info.Name != "summary" {
		t.Errorf("Summary = %+v", info)
	}
}
