package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	name         string
	disconnected bool
}

func (f *fakeTarget) Disconnected() bool { return f.disconnected }

func TestCapRedirector_BlocksUntilTargetSet(t *testing.T) {
	r := NewCapRedirector[*fakeTarget]()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan *fakeTarget, 1)
	go func() {
		target, err := r.Get(context.Background())
		require.NoError(t, err)
		done <- target
	}()

	time.Sleep(5 * time.Millisecond)
	gen := r.SetTarget(&fakeTarget{name: "a"})
	assert.Equal(t, uint64(1), gen)

	select {
	case target := <-done:
		assert.Equal(t, "a", target.name)
	case <-ctx.Done():
		t.Fatal("Get never returned after SetTarget")
	}
}

func TestCapRedirector_DisconnectedTargetBlocksAgain(t *testing.T) {
	r := NewCapRedirector[*fakeTarget]()
	r.SetTarget(&fakeTarget{name: "a", disconnected: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a disconnected target must not be returned")
}

func TestCapRedirector_GenerationMonotonic(t *testing.T) {
	r := NewCapRedirector[*fakeTarget]()
	g1 := r.SetTarget(&fakeTarget{name: "a"})
	g2 := r.SetTarget(&fakeTarget{name: "b"})
	assert.Less(t, g1, g2)
}
