package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/verbatim/internal/fsutil"
	"github.com/aretw0/verbatim/pkg/core"
)

const cacheVersion = 2

// indexEntry represents the collected summary of a single document file.
type indexEntry struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CreatedAt    time.Time      `json:"created_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastModified time.Time      `json:"lastModified"`
}

func (e *indexEntry) document() core.Document {
	meta := make(core.Metadata, len(e.Metadata))
	for k, v := range e.Metadata {
		meta[k] = v
	}
	return core.Document{ID: e.ID, Name: e.Name, CreatedAt: e.CreatedAt, Metadata: meta}
}

func entryFor(doc core.Document, mtime time.Time) *indexEntry {
	return &indexEntry{
		ID:           doc.ID,
		Name:         doc.Name,
		CreatedAt:    doc.CreatedAt,
		Metadata:     doc.Metadata,
		LastModified: mtime,
	}
}

// index represents the persistent cache state.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // Key is the file name (e.g. "3f2a.md")
	dirty   bool
	mu      sync.RWMutex
}

// cache manages the loading, updating, and saving of the index.
type cache struct {
	Path  string // Path to .verbatim/index.json
	index *index
}

// newCache initializes a cache at the given path.
func newCache(vaultPath, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(vaultPath, systemDir, "index.json"),
		index: &index{
			Version: cacheVersion,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the cache from disk. A missing, corrupted or outdated file
// yields an empty index (no error) so the cache self-heals.
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	var loaded struct {
		Version int                    `json:"version"`
		Entries map[string]*indexEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Version != cacheVersion || loaded.Entries == nil {
		c.index.Entries = make(map[string]*indexEntry)
		c.index.dirty = true
		return nil
	}

	c.index.Entries = loaded.Entries
	c.index.dirty = false
	return nil
}

// Save persists the cache to disk if it's dirty.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := fsutil.WriteFileAtomicMkdir(c.Path, data, 0o644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Get retrieves an entry if it exists and is fresh.
func (c *cache) Get(file string, currentMtime time.Time) (*indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()

	entry, ok := c.index.Entries[file]
	if !ok || !entry.LastModified.Equal(currentMtime) {
		return nil, false
	}
	return entry, true
}

// Set updates an entry in the cache.
func (c *cache) Set(file string, entry *indexEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	c.index.Entries[file] = entry
	c.index.dirty = true
}

// Prune removes entries that are not in the 'keep' set.
func (c *cache) Prune(keep map[string]bool) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	for file := range c.index.Entries {
		if !keep[file] {
			delete(c.index.Entries, file)
			c.index.dirty = true
		}
	}
}

// Delete removes a single entry from the cache.
func (c *cache) Delete(file string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	if _, ok := c.index.Entries[file]; ok {
		delete(c.index.Entries, file)
		c.index.dirty = true
	}
}

// Len returns the number of entries in the cache.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
