package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// setETag exposes a note checksum as a quoted strong ETag.
func setETag(w http.ResponseWriter, checksum string) {
	if checksum == "" {
		return
	}
	w.Header().Set("ETag", `"`+checksum+`"`)
}

// etagValue strips surrounding quotes from an ETag header value.
func etagValue(header string) string {
	return strings.Trim(header, `"`)
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
