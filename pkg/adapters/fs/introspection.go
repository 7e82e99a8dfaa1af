package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path        string     `json:"path"`
	SystemDir   string     `json:"system_dir"`
	Format      string     `json:"format"`
	CacheSize   int        `json:"cache_size"`
	ReadOnly    bool       `json:"read_only"`
	Serializers []string   `json:"serializers"`
	LastScan    *time.Time `json:"last_scan,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serializers := make([]string, 0, len(r.serializers))
	for ext := range r.serializers {
		serializers = append(serializers, ext)
	}
	sort.Strings(serializers)

	return RepositoryState{
		Path:        r.Path,
		SystemDir:   r.config.SystemDir,
		Format:      r.config.Format,
		CacheSize:   r.cache.Len(),
		ReadOnly:    r.readOnly,
		Serializers: serializers,
		LastScan:    r.lastScan.Load(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "fs-repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
