package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/verbatim/pkg/adapters/lifecycle"
	"github.com/aretw0/verbatim/pkg/core"
)

func TestCheckSource_Bridge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := lifecycle.NewSource(4)
	require.NoError(t, src.Start(ctx))

	score := 42.5
	src.Publish(core.Check{ID: "c1", DocumentID: "d1", Status: core.CheckCompleted, Similarity: &score}, nil)
	src.Publish(core.Check{ID: "c2", DocumentID: "d2", Status: core.CheckFailed}, errors.New("boom"))

	var got []string
	for len(got) < 2 {
		select {
		case e := <-src.Events():
			got = append(got, e.String())
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	assert.Equal(t, "check c1 of d1 completed (similarity 42.50, 0 matches)", got[0])
	assert.Equal(t, "check c2 of d2 failed: boom", got[1])

	cancel()
	select {
	case _, ok := <-src.Events():
		assert.False(t, ok, "events channel should close on cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed")
	}
}

func TestCheckSource_DropsWhenFull(t *testing.T) {
	src := lifecycle.NewSource(1)
	src.Publish(core.Check{ID: "a"}, nil)
	src.Publish(core.Check{ID: "b"}, nil)
	src.Publish(core.Check{ID: "c"}, nil)
	assert.Equal(t, int64(2), src.Dropped())
}
