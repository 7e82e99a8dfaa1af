// Package textdiff computes character-level diffs between two texts and
// renders short, human-readable previews of what they share.
package textdiff

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultTimeout is the wall-clock budget for a single diff computation.
const DefaultTimeout = time.Second

// Kind tags a diff segment.
type Kind string

const (
	Equal   Kind = "equal"
	Added   Kind = "added"
	Removed Kind = "removed"
)

// Segment is a span of text tagged with how it relates source to target.
// Equal spans appear in both, Added only in the target, Removed only in the source.
type Segment struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Engine computes diffs with a bounded wall-clock budget.
// When the budget is exceeded the result is still a valid (but possibly
// non-minimal) edit script.
type Engine struct {
	timeout time.Duration
}

// NewEngine creates an Engine. A non-positive timeout selects DefaultTimeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{timeout: timeout}
}

// Timeout returns the configured budget.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Sanitize replaces each run of invalid UTF-8 bytes with U+FFFD.
// Valid input is returned unchanged.
func Sanitize(text string) string {
	return strings.ToValidUTF8(text, "\uFFFD")
}

// Segments diffs source against target and applies a semantic cleanup pass
// that merges small noisy edits into larger readable spans.
//
// The diff works on runes, so both inputs pass through Sanitize first:
// Source and Target of the result reproduce the sanitized texts, which equal
// the inputs whenever those are valid UTF-8.
func (e *Engine) Segments(source, target string) []Segment {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = e.timeout

	diffs := dmp.DiffMain(Sanitize(source), Sanitize(target), true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		segments = append(segments, Segment{Kind: kindOf(d.Type), Text: d.Text})
	}
	return segments
}

func kindOf(op diffmatchpatch.Operation) Kind {
	switch op {
	case diffmatchpatch.DiffInsert:
		return Added
	case diffmatchpatch.DiffDelete:
		return Removed
	default:
		return Equal
	}
}

var defaultEngine = NewEngine(DefaultTimeout)

// Segments diffs source against target with the default budget.
func Segments(source, target string) []Segment {
	return defaultEngine.Segments(source, target)
}

// Source replays the segments that belong to the source text.
func Source(segments []Segment) string {
	return replay(segments, Removed)
}

// Target replays the segments that belong to the target text.
func Target(segments []Segment) string {
	return replay(segments, Added)
}

func replay(segments []Segment, side Kind) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == Equal || s.Kind == side {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}
