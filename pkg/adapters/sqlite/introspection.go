package sqlite

import (
	"context"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path     string `json:"path"`
	Open     bool   `json:"open"`
	ReadOnly bool   `json:"read_only"`
	Reports  int    `json:"reports"`
	Checks   int    `json:"checks"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := RepositoryState{
		Path:     r.config.Path,
		Open:     r.db != nil,
		ReadOnly: r.config.ReadOnly,
	}
	if r.db != nil {
		ctx := context.Background()
		_ = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&st.Reports)
		_ = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checks").Scan(&st.Checks)
	}
	return st
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite-repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
