package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/verbatim/pkg/core"
)

// DefaultBuffer is the number of events held before Publish starts dropping.
const DefaultBuffer = 64

// CheckEvent reports a check that reached a final state.
type CheckEvent struct {
	Check core.Check
	Err   error
}

// String implements lifecycle.Event.
func (e CheckEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("check %s of %s failed: %v", e.Check.ID, e.Check.DocumentID, e.Err)
	}
	return fmt.Sprintf("check %s of %s %s (similarity %s, %d matches)",
		e.Check.ID, e.Check.DocumentID, e.Check.Status, core.FormatSimilarity(e.Check.Similarity), len(e.Check.Matches))
}

// CheckSource is a lifecycle.Source of finished checks.
// Its Publish method fits processor.WithOnDone.
type CheckSource struct {
	in      chan CheckEvent
	out     chan lifecycle.Event
	dropped atomic.Int64
}

// NewSource creates a CheckSource buffering up to buffer events.
func NewSource(buffer int) *CheckSource {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &CheckSource{
		in:  make(chan CheckEvent, buffer),
		out: make(chan lifecycle.Event),
	}
}

// Publish queues an event without blocking. Events are dropped when the buffer is full.
func (s *CheckSource) Publish(check core.Check, err error) {
	select {
	case s.in <- CheckEvent{Check: check, Err: err}:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events Publish discarded.
func (s *CheckSource) Dropped() int64 {
	return s.dropped.Load()
}

// Events implements lifecycle.Source. The channel closes when the source stops.
func (s *CheckSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start bridges published events to Events until ctx is done.
func (s *CheckSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e := <-s.in:
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

var _ lifecycle.Source = (*CheckSource)(nil)
