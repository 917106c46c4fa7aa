// Package storage defines the directory-tree abstraction notebook data is
// persisted into, and the backend adapters implementing it.
package storage

import (
	"context"
	"io"
)

// Kind discriminates the two node types of a storage tree.
type Kind int

const (
	// KindContainer is a node that holds further entries.
	KindContainer Kind = iota
	// KindLeaf is a node that holds opaque bytes.
	KindLeaf
)

func (k Kind) String() string {
	if k == KindContainer {
		return "container"
	}
	return "leaf"
}

// Entry is one child of a container.
type Entry struct {
	Name string
	Kind Kind
}

// Tree is the capability surface a notebook repository needs from a
// backend. Paths are forward-slash separated and relative to the backend
// root; the empty path names the root itself.
//
// Adapters translate their native "does not exist" into apperr.ErrNotFound
// and report unreachable backends from their constructors with
// apperr.ErrBackendUnavailable.
type Tree interface {
	// List returns the direct children of dir.
	List(ctx context.Context, dir string) ([]Entry, error)
	// Exists reports whether a leaf exists at path.
	Exists(ctx context.Context, path string) (bool, error)
	// OpenRead opens the leaf at path for reading. The caller closes it.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	// Write replaces the leaf at path with data, creating it if absent.
	Write(ctx context.Context, path string, data []byte) error
	// EnsureDir idempotently creates the container at path.
	EnsureDir(ctx context.Context, path string) error
	// DeleteIfExists removes the node at path; absence is success. A
	// container must already be empty.
	DeleteIfExists(ctx context.Context, path string, kind Kind) error
	// Close releases backend resources. Safe to call more than once.
	Close() error
}
