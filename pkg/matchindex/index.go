// Package matchindex keeps a symmetric record of which documents matched each
// other, persisted as a single JSON file.
package matchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/verbatim/internal/fsutil"
	"github.com/aretw0/verbatim/pkg/core"
)

// FileName is the default name of the index file.
const FileName = "matches.json"

// Index is a file-backed core.PeerIndex. Every call reads the file, so
// several processes sharing a vault see each other's updates.
type Index struct {
	path string
	mu   sync.Mutex
}

// New creates an Index stored at path. The file is created on first write.
func New(path string) *Index {
	return &Index{path: path}
}

// Open creates an Index in dir using the default file name.
func Open(dir string) *Index {
	return New(filepath.Join(dir, FileName))
}

// Path returns the location of the index file.
func (x *Index) Path() string {
	return x.path
}

type peers map[string][]string

// read loads the index. Missing or corrupted files yield an empty index.
func (x *Index) read() peers {
	data, err := os.ReadFile(x.path)
	if err != nil {
		return peers{}
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return peers{}
	}

	idx := peers{}
	for key, value := range raw {
		list, ok := value.([]any)
		if !ok {
			continue
		}
		var ids []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		if ids = clean(key, ids); len(ids) > 0 {
			idx[key] = ids
		}
	}
	return idx
}

func (x *Index) write(idx peers) error {
	out := make(peers, len(idx))
	for key, ids := range idx {
		if ids = clean(key, ids); len(ids) > 0 {
			out[key] = ids
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode match index: %w", err)
	}
	if err := fsutil.WriteFileAtomicMkdir(x.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write match index: %w", err)
	}
	return nil
}

// clean drops empty ids, duplicates and self references, keeping first-seen order.
func clean(self string, ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// without returns ids minus drop, and whether anything was removed.
func without(ids []string, drop string) ([]string, bool) {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out, len(out) != len(ids)
}

// Peers returns the documents recorded as matches of id.
func (x *Index) Peers(ctx context.Context, id string) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string{}, x.read()[id]...), nil
}

// Update replaces the peers of id. Back references to id held by documents
// that are no longer its peers are dropped, and id is added to each new peer.
func (x *Index) Update(ctx context.Context, id string, matches []string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	idx := x.read()
	for peer, ids := range idx {
		if peer == id {
			continue
		}
		if filtered, changed := without(ids, id); changed {
			idx[peer] = filtered
		}
	}

	matches = clean(id, append([]string(nil), matches...))
	if len(matches) == 0 {
		delete(idx, id)
		return x.write(idx)
	}
	idx[id] = matches
	for _, m := range matches {
		idx[m] = clean(m, append(idx[m], id))
	}
	return x.write(idx)
}

// Remove drops id and every reference to it.
func (x *Index) Remove(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	idx := x.read()
	changed := false
	if _, ok := idx[id]; ok {
		delete(idx, id)
		changed = true
	}
	for peer, ids := range idx {
		if filtered, removed := without(ids, id); removed {
			idx[peer] = filtered
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return x.write(idx)
}

// Reset empties the index.
func (x *Index) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.write(peers{})
}

// Len returns the number of documents with at least one peer.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.read())
}

// State implements introspection.Introspectable.
func (x *Index) State() any {
	return struct {
		Path    string `json:"path"`
		Entries int    `json:"entries"`
	}{Path: x.path, Entries: x.Len()}
}

// ComponentType implements introspection.Component.
func (x *Index) ComponentType() string {
	return "match-index"
}

var _ core.PeerIndex = (*Index)(nil)
