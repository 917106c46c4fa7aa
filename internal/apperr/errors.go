// Package apperr defines the error kinds shared across othala. Callers
// classify failures with errors.Is/As, never by matching message text.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyExists      = errors.New("already exists")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrCorruptNote        = errors.New("corrupt note content")
	ErrUnencodableNote    = errors.New("note not encodable")
)

// IOError is a backend fault annotated with the repository operation and,
// when one is involved, the note id it hit.
type IOError struct {
	Op   string // "list", "get", "save", "remove", "init"
	Note string
	Err  error
}

func (e *IOError) Error() string {
	if e.Note == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s note %s: %v", e.Op, e.Note, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
