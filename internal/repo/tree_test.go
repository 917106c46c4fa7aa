package repo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func memRepo(t *testing.T, scope string) (*TreeRepo, *storage.Mem) {
	t.Helper()
	tree := storage.NewMem()
	r, err := NewTreeRepo(context.Background(), tree, scope, discard())
	if err != nil {
		t.Fatalf("NewTreeRepo: %v", err)
	}
	return r, tree
}

func TestSaveAndGet(t *testing.T) {
	r, _ := memRepo(t, "")
	ctx := context.Background()

	n := &notebook.Note{
		ID:   "n1",
		Name: "round trip",
		Paragraphs: []*notebook.Paragraph{
			{ID: "p1", Text: "select 1", Status: notebook.StatusFinished},
		},
	}
	if err := r.Save(ctx, n); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := r.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "round trip" || len(got.Paragraphs) != 1 || got.Paragraphs[0].Text != "select 1" {
		t.Errorf("note = %+v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	r, _ := memRepo(t, "")
	ctx := context.Background()

	_ = r.Save(ctx, &notebook.Note{ID: "n1", Name: "first"})
	if err := r.Save(ctx, &notebook.Note{ID: "n1", Name: "second"}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, err := r.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "second" {
		t.Errorf("name = %q, want the overwritten value", got.Name)
	}
}

func TestSaveRejectsMissingID(t *testing.T) {
	r, _ := memRepo(t, "")
	if err := r.Save(context.Background(), &notebook.Note{Name: "no id"}); err == nil {
		t.Error("expected error saving a note without an id")
	}
	if err := r.Save(context.Background(), nil); err == nil {
		t.Error("expected error saving nil")
	}
}

func TestGetMissing(t *testing.T) {
	r, _ := memRepo(t, "")
	_, err := r.Get(context.Background(), "ghost")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound in the chain", err)
	}
	var ioErr *apperr.IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "get" || ioErr.Note != "ghost" {
		t.Errorf("err = %v, want IOError{get, ghost}", err)
	}
}

func TestGetSanitizesStoredStatus(t *testing.T) {
	r, tree := memRepo(t, "")
	ctx := context.Background()

	// A document persisted mid-run still claims RUNNING.
	doc := `{"id":"n1","paragraphs":[{"id":"p1","status":"RUNNING"}]}`
	if err := tree.Write(ctx, "notebook/n1/note.json", []byte(doc)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := r.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Paragraphs[0].Status != notebook.StatusAbort {
		t.Errorf("status = %s, want ABORT", got.Paragraphs[0].Status)
	}
}

func TestGetContainerNameWins(t *testing.T) {
	r, tree := memRepo(t, "")
	ctx := context.Background()

	// A copied container keeps the source document's id field.
	doc := `{"id":"original","name":"copied","paragraphs":[]}`
	if err := tree.Write(ctx, "notebook/copy/note.json", []byte(doc)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := r.Get(ctx, "copy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "copy" {
		t.Errorf("id = %q, want the container name", got.ID)
	}

	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "copy" {
		t.Errorf("infos = %+v, want one entry under the container name", infos)
	}
}

func TestListSkipsBrokenEntries(t *testing.T) {
	r, tree := memRepo(t, "")
	ctx := context.Background()

	_ = r.Save(ctx, &notebook.Note{ID: "good", Name: "fine"})
	// A container without a document.
	_ = tree.EnsureDir(ctx, "notebook/empty")
	// A corrupt document.
	_ = tree.Write(ctx, "notebook/bad/note.json", []byte("{nope"))
	// A stray leaf directly under the root.
	_ = tree.Write(ctx, "notebook/stray.txt", []byte("x"))

	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("infos = %+v, want only the loadable note", infos)
	}
}

func TestListEmptyRepo(t *testing.T) {
	r, _ := memRepo(t, "")
	infos, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("infos = %+v, want empty", infos)
	}
}

func TestRemoveDeletesSubtree(t *testing.T) {
	r, tree := memRepo(t, "")
	ctx := context.Background()

	_ = r.Save(ctx, &notebook.Note{ID: "n1", Name: "doomed"})
	// Extra leaves under the note container also go.
	_ = tree.Write(ctx, "notebook/n1/attachment.bin", []byte("blob"))
	_ = tree.Write(ctx, "notebook/n1/sub/deep.txt", []byte("deep"))

	if err := r.Remove(ctx, "n1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get(ctx, "n1"); err == nil {
		t.Error("note should be gone")
	}
	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List after remove: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("infos = %+v, want empty", infos)
	}
}

func TestRemoveAbsentSucceeds(t *testing.T) {
	r, _ := memRepo(t, "")
	if err := r.Remove(context.Background(), "never-existed"); err != nil {
		t.Errorf("Remove absent: %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r, _ := memRepo(t, "")
	ctx := context.Background()
	_ = r.Save(ctx, &notebook.Note{ID: "n1", Name: "twice"})

	if err := r.Remove(ctx, "n1"); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := r.Remove(ctx, "n1"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestScopedLayout(t *testing.T) {
	r, tree := memRepo(t, "team-a")
	ctx := context.Background()

	if err := r.Save(ctx, &notebook.Note{ID: "n1", Name: "scoped"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, err := tree.Exists(ctx, "team-a/notebook/n1/note.json")
	if err != nil || !ok {
		t.Errorf("document not at scoped path: ok=%v err=%v", ok, err)
	}

	infos, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "n1" {
		t.Errorf("infos = %+v", infos)
	}
}

func TestRevisionSurfaceDegrades(t *testing.T) {
	r, _ := memRepo(t, "")
	ctx := context.Background()

	rev, err := r.Checkpoint(ctx, "n1", "checkpoint message")
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !rev.IsEmpty() {
		t.Errorf("rev = %+v, want the empty revision", rev)
	}

	if n, err := r.GetByRevision(ctx, "n1", "r1"); n != nil || err != nil {
		t.Errorf("GetByRevision = %v, %v; want nil, nil", n, err)
	}
	if revs, err := r.RevisionHistory(ctx, "n1"); revs != nil || err != nil {
		t.Errorf("RevisionHistory = %v, %v; want nil, nil", revs, err)
	}
	if n, err := r.SetNoteRevision(ctx, "n1", "r1"); n != nil || err != nil {
		t.Errorf("SetNoteRevision = %v, %v; want nil, nil", n, err)
	}
	if s := r.Settings(ctx); s != nil {
		t.Errorf("Settings = %v, want nil", s)
	}
	// UpdateSettings must swallow input without erroring.
	r.UpdateSettings(ctx, map[string]string{"anything": "goes"})
}

func TestCloseIdempotent(t *testing.T) {
	r, _ := memRepo(t, "")
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestResolverPaths(t *testing.T) {
	cases := []struct {
		scope    string
		root     string
		noteFile string
	}{
		{"", "notebook", "notebook/n1/note.json"},
		{"team-a", "team-a/notebook", "team-a/notebook/n1/note.json"},
		{"org/team-b", "org/team-b/notebook", "org/team-b/notebook/n1/note.json"},
	}
	for _, tc := range cases {
		res := NewResolver(tc.scope)
		if got := res.Root(); got != tc.root {
			t.Errorf("Root(%q) = %q, want %q", tc.scope, got, tc.root)
		}
		if got := res.NoteFile("n1"); got != tc.noteFile {
			t.Errorf("NoteFile(%q) = %q, want %q", tc.scope, got, tc.noteFile)
		}
	}
}

// readAll drains a tree leaf for assertions.
func readAll(t *testing.T, tree storage.Tree, path string) []byte {
	t.Helper()
	rc, err := tree.OpenRead(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenRead %s: %v", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll %s: %v", path, err)
	}
	return data
}

func TestSaveWritesPrettyDocument(t *testing.T) {
	r, tree := memRepo(t, "")
	ctx := context.Background()
	_ = r.Save(ctx, &notebook.Note{ID: "n1", Name: "pretty"})

	data := readAll(t, tree, "notebook/n1/note.json")
	if data[0] != '{' || data[1] != '\n' {
		t.Errorf("document is not pretty-printed: %q", data[:min(len(data), 20)])
	}
}
