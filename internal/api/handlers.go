package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/notebook"
	"github.com/starford/othala/internal/noteservice"
)

// maxSearchLimit caps the client-supplied result limit.
const maxSearchLimit = 100

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// noteID extracts the note id from the URL. Supports percent-encoded ids
// from OpenAPI clients.
func noteID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List stored notes
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListNotes(r.Context())
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if infos == nil {
		infos = []notebook.NoteInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": infos,
		"total": len(infos),
	})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	n, cs, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	setETag(w, cs)
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	n := &notebook.Note{ID: req.ID, Name: req.Name, Paragraphs: req.Paragraphs}
	created, cs, err := h.svc.CreateNote(r.Context(), n)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		} else {
			slog.Error("create note failed", slog.String("name", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	setETag(w, cs)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateNote handles PUT /api/notes/{id}. The body is the full note
// document; a body id that disagrees with the URL is rejected.
//
//	@Summary		Overwrite a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string	true	"Note id"
//	@Param			If-Match	header		string	false	"Checksum of the last read for optimistic concurrency"
//	@Param			body		body		Note	true	"Full note document"
//	@Success		200			{object}	Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}

	var n notebook.Note
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if n.ID != "" && n.ID != id {
		writeJSON(w, http.StatusBadRequest, errorBody("body id does not match URL"))
		return
	}
	n.ID = id

	ifMatch := etagValue(r.Header.Get("If-Match"))

	saved, cs, err := h.svc.SaveNote(r.Context(), &n, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	setETag(w, cs)
	writeJSON(w, http.StatusOK, saved)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting an absent note
// succeeds, so the response is 204 unless the backend itself fails.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkpoint handles POST /api/notes/{id}/checkpoint.
//
//	@Summary		Record a revision of a note
//	@Tags			revisions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		CheckpointRequest	false	"Checkpoint message"
//	@Success		200		{object}	notebook.Revision
//	@Security		BearerAuth
//	@Router			/notes/{id}/checkpoint [post]
func (h *Handler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	var req CheckpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rev, err := h.svc.Checkpoint(r.Context(), id, req.Message)
	if err != nil {
		slog.Error("checkpoint failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// ListRevisions handles GET /api/notes/{id}/revisions.
//
//	@Summary		List a note's revision history
//	@Tags			revisions
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	RevisionListResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/revisions [get]
func (h *Handler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	revs, err := h.svc.RevisionHistory(r.Context(), id)
	if err != nil {
		slog.Error("revision history failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if revs == nil {
		revs = []notebook.Revision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revisions": revs,
	})
}

// GetNoteRevision handles GET /api/notes/{id}/revisions/{revID}.
//
//	@Summary		Get a note frozen at a revision
//	@Tags			revisions
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			revID	path		string	true	"Revision id"
//	@Success		200		{object}	Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/revisions/{revID} [get]
func (h *Handler) GetNoteRevision(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	revID := chi.URLParam(r, "revID")
	if id == "" || revID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id and revID are required"))
		return
	}
	n, err := h.svc.GetNoteByRevision(r.Context(), id, revID)
	if err != nil {
		slog.Error("get revision failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if n == nil {
		writeJSON(w, http.StatusNotFound, errorBody("revision not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// SetNoteRevision handles PUT /api/notes/{id}/revisions/{revID}.
//
//	@Summary		Pin a note back to a revision
//	@Tags			revisions
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			revID	path		string	true	"Revision id"
//	@Success		200		{object}	Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/revisions/{revID} [put]
func (h *Handler) SetNoteRevision(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	revID := chi.URLParam(r, "revID")
	if id == "" || revID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id and revID are required"))
		return
	}
	n, err := h.svc.SetNoteRevision(r.Context(), id, revID)
	if err != nil {
		slog.Error("set revision failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if n == nil {
		writeJSON(w, http.StatusNotFound, errorBody("revision not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	results, err := h.svc.Search(r.Context(), query, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		List repository settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.svc.Settings(r.Context())
	if settings == nil {
		settings = []notebook.Setting{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings": settings,
	})
}

// UpdateSettings handles PUT /api/settings.
//
//	@Summary		Apply repository settings changes
//	@Tags			settings
//	@Accept			json
//	@Param			body	body	map[string]string	true	"Settings to apply"
//	@Success		204		"Settings accepted"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	h.svc.UpdateSettings(r.Context(), settings)
	w.WriteHeader(http.StatusNoContent)
}
