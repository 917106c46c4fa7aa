package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/noteservice"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/testutil"
)

// testEnv sets up an in-memory repository, SQLite index, service, and
// router. An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc := noteservice.NewService(testutil.TestRepo(t), testutil.TestDB(t), nil)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return svc, router
}

func createNote(t *testing.T, router http.Handler, body map[string]any) (notebook.Note, string) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var n notebook.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode created note: %v", err)
	}
	return n, w.Header().Get("ETag")
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	created, etag := createNote(t, router, map[string]any{"name": "Hello World"})
	if created.ID == "" {
		t.Fatal("created note has no id")
	}
	if etag == "" || !strings.HasPrefix(etag, `"`) {
		t.Errorf("ETag = %q, want a quoted checksum", etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes/"+created.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != etag {
		t.Errorf("get ETag = %q, want %q", got, etag)
	}
	var n notebook.Note
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if n.Name != "Hello World" {
		t.Errorf("name = %q", n.Name)
	}
}

func TestCreateWithParagraphs(t *testing.T) {
	_, router := testEnv(t, "")

	created, _ := createNote(t, router, map[string]any{
		"name": "With Content",
		"paragraphs": []map[string]any{
			{"id": "p1", "text": "select 1", "status": "FINISHED"},
		},
	})
	if len(created.Paragraphs) != 1 || created.Paragraphs[0].Text != "select 1" {
		t.Errorf("paragraphs = %+v", created.Paragraphs)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{"id": "dup1", "name": "first"})

	body, _ := json.Marshal(map[string]any{"id": "dup1", "name": "second"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateMissingName(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"id": "x1"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without name = %d, want 400", w.Code)
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("create with bad JSON = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	created, etag := createNote(t, router, map[string]any{"id": "lock1", "name": "v1"})

	// Update with the current checksum.
	created.Name = "v2"
	updateBody, _ := json.Marshal(&created)
	req := httptest.NewRequest(http.MethodPut, "/notes/lock1", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", etag)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with current checksum = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag unchanged after update")
	}

	// Update with the stale checksum.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock1", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	// Without If-Match the PUT is an unconditional upsert, even for an id
	// that does not exist yet.
	body, _ := json.Marshal(map[string]any{"name": "upserted"})
	req := httptest.NewRequest(http.MethodPut, "/notes/new1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/new1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("get after upsert = %d, want 200", w.Code)
	}
}

func TestUpdateMissingWithIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	body, _ := json.Marshal(map[string]any{"name": "x"})
	req := httptest.NewRequest(http.MethodPut, "/notes/ghost1", bytes.NewReader(body))
	req.Header.Set("If-Match", `"deadbeef"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("conditional update of missing note = %d, want 404", w.Code)
	}
}

func TestUpdateBodyIDMismatch(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{"id": "mine", "name": "x"})

	body, _ := json.Marshal(map[string]any{"id": "theirs", "name": "x"})
	req := httptest.NewRequest(http.MethodPut, "/notes/mine", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("mismatched body id = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{"id": "bye1", "name": "gone"})

	req := httptest.NewRequest(http.MethodDelete, "/notes/bye1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	// GET should now 404.
	req = httptest.NewRequest(http.MethodGet, "/notes/bye1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestDeleteAbsentNote(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/notes/never-was", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete absent = %d, want 204", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{"id": "a1", "name": "A"})
	createNote(t, router, map[string]any{"id": "b1", "name": "B"})

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp struct {
		Notes []notebook.NoteInfo `json:"notes"`
		Total int                 `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 2 || resp.Total != 2 {
		t.Errorf("notes = %+v total = %d, want 2", resp.Notes, resp.Total)
	}
}

func TestListNotesEmpty(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"notes":[]`) {
		t.Errorf("empty list body = %s, want an empty array", w.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{
		"name": "Find Me",
		"paragraphs": []map[string]any{
			{"id": "p1", "text": "uniquetoken here"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Name != "Find Me" {
		t.Errorf("search results = %+v, want one hit", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

// Revision endpoints degrade gracefully on tree storage: checkpoint
// answers with the empty revision and the history is always empty.

func TestCheckpointReturnsEmptyRevision(t *testing.T) {
	_, router := testEnv(t, "")

	createNote(t, router, map[string]any{"id": "cp1", "name": "x"})

	body, _ := json.Marshal(map[string]string{"message": "before refactor"})
	req := httptest.NewRequest(http.MethodPost, "/notes/cp1/checkpoint", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("checkpoint = %d, body = %s", w.Code, w.Body.String())
	}
	var rev notebook.Revision
	_ = json.Unmarshal(w.Body.Bytes(), &rev)
	if !rev.IsEmpty() {
		t.Errorf("revision = %+v, want the empty revision", rev)
	}
}

func TestCheckpointEmptyBody(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/notes/cp2/checkpoint", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("checkpoint without body = %d, want 200", w.Code)
	}
}

func TestListRevisionsEmpty(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/n1/revisions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("revisions = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"revisions":[]`) {
		t.Errorf("body = %s, want an empty array", w.Body.String())
	}
}

func TestGetRevisionNotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/n1/revisions/r1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get revision = %d, want 404", w.Code)
	}
}

func TestSetRevisionNotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPut, "/notes/n1/revisions/r1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("set revision = %d, want 404", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"settings":[]`) {
		t.Errorf("body = %s, want an empty array", w.Body.String())
	}

	body, _ := json.Marshal(map[string]string{"container": "other"})
	req = httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("put settings = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader("{nope"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("put bad settings = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]any{"name": "authed"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

// SSE endpoint auth tests use the real broker: it blocks until the request
// context is done, so each request carries a short timeout.

func sseEnv(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc := noteservice.NewService(testutil.TestRepo(t), testutil.TestDB(t), nil)
	broker := sse.NewBroker()
	t.Cleanup(broker.Close)
	return NewRouter(svc, authEnabled, token, broker)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := sseEnv(t, true, "secret")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := sseEnv(t, false, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := sseEnv(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
