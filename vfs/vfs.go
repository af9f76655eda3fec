// Package vfs implements the in-memory virtual file system that backs
// source loading.
//
// Every entry is keyed by a normalized path identity and carries optional
// source content, an optional extension hook, and the required flag used
// by execute-once loading. Keeping all three in one record means a path
// has exactly one identity and one load state.
//
// A FileSystem is owned by a single interpreter and is not safe for
// concurrent use.
package vfs

import (
	"errors"
	"sort"
)

var (
	// ErrNotFound is returned when no entry exists at a path.
	ErrNotFound = errors.New("file not found in virtual file system")

	// ErrInvalidPath is returned for paths containing a NUL byte.
	ErrInvalidPath = errors.New("path name contains null byte")
)

// Entry is a single file in the virtual file system.
type Entry[H any] struct {
	Content    []byte
	HasContent bool
	Hook       H
	HasHook    bool
	Required   bool
}

// FileSystem maps normalized paths to entries. H is the extension hook
// type; the file system only stores hooks and never invokes them.
type FileSystem[H any] struct {
	cwd     string
	entries map[string]*Entry[H]
}

// New creates an empty file system rooted at cwd. An empty cwd selects
// DefaultRoot.
func New[H any](cwd string) *FileSystem[H] {
	if cwd == "" {
		cwd = DefaultRoot
	}
	return &FileSystem[H]{
		cwd:     normalize("/", cwd),
		entries: make(map[string]*Entry[H]),
	}
}

// Cwd returns the directory relative paths are resolved against.
func (fs *FileSystem[H]) Cwd() string {
	return fs.cwd
}

// Normalize returns the identity key for p.
func (fs *FileSystem[H]) Normalize(p string) string {
	return normalize(fs.cwd, p)
}

func (fs *FileSystem[H]) lookup(p string) (*Entry[H], bool) {
	e, ok := fs.entries[fs.Normalize(p)]
	return e, ok
}

func (fs *FileSystem[H]) entry(p string) *Entry[H] {
	key := fs.Normalize(p)
	e, ok := fs.entries[key]
	if !ok {
		e = &Entry[H]{}
		fs.entries[key] = e
	}
	return e
}

// WriteFile stores content at p, replacing any previous content. The
// required flag of an existing entry is preserved.
func (fs *FileSystem[H]) WriteFile(p string, content []byte) error {
	if !ValidPath(p) {
		return ErrInvalidPath
	}
	e := fs.entry(p)
	e.Content = content
	e.HasContent = true
	return nil
}

// ReadFile returns the content stored at p. Entries that only carry a
// hook read as empty. There is no extension fallback.
func (fs *FileSystem[H]) ReadFile(p string) ([]byte, error) {
	e, ok := fs.lookup(p)
	if !ok {
		return nil, ErrNotFound
	}
	if !e.HasContent {
		return []byte{}, nil
	}
	return e.Content, nil
}

// RegisterExtension attaches hook to p. The last registration wins.
func (fs *FileSystem[H]) RegisterExtension(p string, hook H) error {
	if !ValidPath(p) {
		return ErrInvalidPath
	}
	e := fs.entry(p)
	e.Hook = hook
	e.HasHook = true
	return nil
}

// ResolveFile returns the canonical path for p if an entry exists there.
func (fs *FileSystem[H]) ResolveFile(p string) (string, bool) {
	key := fs.Normalize(p)
	if _, ok := fs.entries[key]; !ok {
		return "", false
	}
	return key, true
}

// IsFile reports whether an entry exists at p.
func (fs *FileSystem[H]) IsFile(p string) bool {
	_, ok := fs.lookup(p)
	return ok
}

// GetExtension returns the hook registered at p.
func (fs *FileSystem[H]) GetExtension(p string) (H, bool) {
	e, ok := fs.lookup(p)
	if !ok || !e.HasHook {
		var zero H
		return zero, false
	}
	return e.Hook, true
}

// IsRequired returns the required flag at p. known is false when there
// is no entry at p.
func (fs *FileSystem[H]) IsRequired(p string) (required, known bool) {
	e, ok := fs.lookup(p)
	if !ok {
		return false, false
	}
	return e.Required, true
}

// MarkRequired sets the required flag at p.
func (fs *FileSystem[H]) MarkRequired(p string) error {
	e, ok := fs.lookup(p)
	if !ok {
		return ErrNotFound
	}
	e.Required = true
	return nil
}

// Len returns the number of entries.
func (fs *FileSystem[H]) Len() int {
	return len(fs.entries)
}

// Paths returns all entry paths in sorted order.
func (fs *FileSystem[H]) Paths() []string {
	paths := make([]string, 0, len(fs.entries))
	for p := range fs.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
