// Package registry maps a frontend's stream numbers to file identities in
// the store, handling mtime-based invalidation and locality filtering
// (spec.md §4.B).
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sindex/internal/store"
)

// slotState distinguishes a not-yet-seen stream from one resolved to a
// real file or one permanently excluded.
type slotState int

const (
	fresh slotState = iota
	resolved
	ignored
)

type slot struct {
	state  slotState
	fileID int64
}

// Registry is a growable, stream-indexed array of file identities. It
// never shrinks during a run: once a slot is resolved or ignored it stays
// that way for the lifetime of the Registry.
type Registry struct {
	root  string
	store *store.Store
	slots []slot
}

// New returns a Registry rooted at root (the project root every indexed
// path must lie strictly under). root should already be an absolute,
// symlink-resolved path.
func New(root string, s *store.Store) *Registry {
	return &Registry{root: root, store: s}
}

// Ensure resolves stream to a file-id, growing the slot array as needed.
// It performs the stat/lookup/delete-if-stale/insert sequence from
// spec.md §4.B under a held write transaction so that concurrent indexers
// cannot duplicate-insert the same path. ok is false when the stream is
// outside the project root or is not backed by a real file; callers must
// then drop any record referencing that stream.
func (r *Registry) Ensure(ctx context.Context, stream int, path string) (fileID int64, ok bool, err error) {
	r.grow(stream)

	switch r.slots[stream].state {
	case resolved:
		return r.slots[stream].fileID, true, nil
	case ignored:
		return 0, false, nil
	}

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		r.slots[stream] = slot{state: ignored}
		return 0, false, nil
	}
	real, err = filepath.Abs(real)
	if err != nil {
		r.slots[stream] = slot{state: ignored}
		return 0, false, nil
	}

	if !underRoot(r.root, real) {
		r.slots[stream] = slot{state: ignored}
		return 0, false, nil
	}

	info, err := os.Stat(real)
	if err != nil {
		r.slots[stream] = slot{state: ignored}
		return 0, false, nil
	}

	rel, err := filepath.Rel(r.root, real)
	if err != nil {
		return 0, false, fmt.Errorf("relativize %s: %w", real, err)
	}
	mtime := info.ModTime().Unix()

	tx, err := r.store.BeginWrite(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := r.store.LookupFile(tx, rel)
	if err != nil {
		return 0, false, err
	}

	var id int64
	switch {
	case rec == nil:
		id, err = r.store.InsertFile(tx, rel, mtime)
		if err != nil {
			return 0, false, err
		}
	case rec.Mtime != mtime:
		if err := r.store.DeleteFile(tx, rel); err != nil {
			return 0, false, err
		}
		id, err = r.store.InsertFile(tx, rel, mtime)
		if err != nil {
			return 0, false, err
		}
	default:
		id = rec.ID
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}

	r.slots[stream] = slot{state: resolved, fileID: id}
	return id, true, nil
}

func (r *Registry) grow(stream int) {
	if stream < len(r.slots) {
		return
	}
	grown := make([]slot, stream+1)
	copy(grown, r.slots)
	r.slots = grown
}

// underRoot reports whether real lies strictly under root (root itself
// does not count; the path must have at least one component below it).
func underRoot(root, real string) bool {
	root = filepath.Clean(root)
	real = filepath.Clean(real)
	if real == root {
		return false
	}
	return strings.HasPrefix(real, root+string(filepath.Separator))
}
