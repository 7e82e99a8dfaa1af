package core

import (
	"time"

	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	RepositoryType      string     `json:"repository_type"`
	CheckRepositoryType string     `json:"check_repository_type,omitempty"`
	PeerIndex           bool       `json:"peer_index"`
	BlobStore           bool       `json:"blob_store"`
	LexicalWeight       float64    `json:"lexical_weight"`
	CharWeight          float64    `json:"char_weight"`
	MaxMatches          int        `json:"max_matches"`
	MinScore            float64    `json:"min_score"`
	Parallelism         int        `json:"parallelism"`
	DiffTimeout         string     `json:"diff_timeout"`
	CloudOnly           bool       `json:"cloud_only"`
	ChecksCompleted     int        `json:"checks_completed"`
	ChecksFailed        int        `json:"checks_failed"`
	LastCheck           *time.Time `json:"last_check,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.ranker.Config()
	st := ServiceState{
		RepositoryType:  componentType(s.repo, "repository"),
		PeerIndex:       s.peers != nil,
		BlobStore:       s.blobs != nil,
		LexicalWeight:   cfg.LexicalWeight,
		CharWeight:      cfg.CharWeight,
		MaxMatches:      s.maxMatches,
		MinScore:        s.minScore,
		Parallelism:     s.parallelism,
		DiffTimeout:     s.engine.Timeout().String(),
		CloudOnly:       s.cloudOnly,
		ChecksCompleted: s.completed,
		ChecksFailed:    s.failed,
	}
	if s.checks != nil {
		st.CheckRepositoryType = componentType(s.checks, "checks")
	}
	if !s.lastCheck.IsZero() {
		last := s.lastCheck
		st.LastCheck = &last
	}
	return st
}

func componentType(v any, fallback string) string {
	if v == nil {
		return "unknown"
	}
	if comp, ok := v.(introspection.Component); ok {
		return comp.ComponentType()
	}
	return fallback
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
