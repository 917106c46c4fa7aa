package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/starford/othala/internal/apperr"
)

// Mem implements Tree in process memory. It backs tests and the ephemeral
// backend mode.
type Mem struct {
	mu     sync.RWMutex
	leaves map[string][]byte
	dirs   map[string]struct{}
}

// NewMem creates an empty in-memory tree.
func NewMem() *Mem {
	return &Mem{
		leaves: make(map[string][]byte),
		dirs:   make(map[string]struct{}),
	}
}

// List returns the direct children of dir, sorted by name.
func (m *Mem) List(ctx context.Context, dir string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := ""
	if dir != "" {
		if _, ok := m.dirs[dir]; !ok {
			return nil, fmt.Errorf("storage: list %s: %w", dir, apperr.ErrNotFound)
		}
		prefix = dir + "/"
	}
	seen := map[string]Kind{}
	for name := range m.dirs {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			head, _, _ := strings.Cut(rest, "/")
			seen[head] = KindContainer
		}
	}
	for name := range m.leaves {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		head, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[head] = KindContainer
		} else if _, isDir := seen[head]; !isDir {
			seen[head] = KindLeaf
		}
	}
	entries := make([]Entry, 0, len(seen))
	for name, kind := range seen {
		entries = append(entries, Entry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Exists reports whether a leaf exists at path.
func (m *Mem) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.leaves[path]
	return ok, nil
}

// OpenRead returns a reader over a copy-safe view of the leaf at path.
func (m *Mem) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.leaves[path]
	if !ok {
		return nil, fmt.Errorf("storage: open %s: %w", path, apperr.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Write replaces the leaf at path, registering its parent containers.
func (m *Mem) Write(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[path] = bytes.Clone(data)
	for p := parentDir(path); p != ""; p = parentDir(p) {
		m.dirs[p] = struct{}{}
	}
	return nil
}

// EnsureDir registers the container at path and its parents.
func (m *Mem) EnsureDir(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := path; p != ""; p = parentDir(p) {
		m.dirs[p] = struct{}{}
	}
	return nil
}

// DeleteIfExists removes the node at path. Absence is success; a container
// must already be empty.
func (m *Mem) DeleteIfExists(ctx context.Context, path string, kind Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == KindLeaf {
		delete(m.leaves, path)
		return nil
	}
	prefix := path + "/"
	for name := range m.leaves {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("storage: delete container %s: not empty", path)
		}
	}
	for name := range m.dirs {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("storage: delete container %s: not empty", path)
		}
	}
	delete(m.dirs, path)
	return nil
}

// Close is a no-op.
func (m *Mem) Close() error { return nil }

func parentDir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}
