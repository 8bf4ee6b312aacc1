package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	addr   string
	closes atomic.Int32
}

func (c *fakeConn) Send(protocol.Message) error        { return nil }
func (c *fakeConn) Receive() (protocol.Message, error) { return protocol.Message{}, nil }
func (c *fakeConn) Close() error                       { c.closes.Add(1); return nil }
func (c *fakeConn) RemoteAddr() string                 { return c.addr }

func TestRegistry_RegisterAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	s1, err := r.Register(&fakeConn{addr: "10.0.0.1:5000"})
	require.NoError(t, err)
	s2, err := r.Register(&fakeConn{addr: "10.0.0.2:5000"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), s1.ID)
	assert.Equal(t, uint64(2), s2.ID)
	assert.Equal(t, "10.0.0.1:5000", s1.RemoteAddr)
	assert.Equal(t, fixed, s1.ConnectedAt)
	assert.Equal(t, 2, r.Len())

	got := r.Snapshot()
	require.Len(t, got, 2)
	assert.Same(t, s1, got[0])
	assert.Same(t, s2, got[1])
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r := NewRegistry()

	s1, _ := r.Register(&fakeConn{})
	require.True(t, r.Deregister(s1.ID))

	s2, _ := r.Register(&fakeConn{})
	assert.Greater(t, s2.ID, s1.ID)

	got := r.Snapshot()
	require.Len(t, got, 1)
	assert.Same(t, s2, got[0])
}

func TestRegistry_DeregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Register(&fakeConn{})

	assert.True(t, r.Deregister(s.ID))
	assert.False(t, r.Deregister(s.ID))
	assert.False(t, r.Deregister(999))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentDeregisterRemovesOnce(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Register(&fakeConn{})

	var removed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Deregister(s.ID) {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), removed.Load())
}

func TestRegistry_ConcurrentRegisterUniqueIDs(t *testing.T) {
	r := NewRegistry()

	const workers = 64
	ids := make([]uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Register(&fakeConn{})
			if err == nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers)
	for _, id := range ids {
		require.NotZero(t, id)
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Equal(t, workers, r.Len())
}

func TestRegistry_ForEachToleratesRemoval(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		_, _ = r.Register(&fakeConn{})
	}

	visited := 0
	r.ForEach(func(s *Session) {
		visited++
		r.Deregister(s.ID)
		r.Deregister(s.ID + 1)
	})

	assert.Equal(t, 5, visited)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		_, _ = r.Register(&fakeConn{})
	}
	r.Deregister(2)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, uint64(1), snap[0].ID)
	assert.Equal(t, uint64(3), snap[1].ID)
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	c1, c2 := &fakeConn{}, &fakeConn{}
	_, _ = r.Register(c1)
	_, _ = r.Register(c2)

	assert.Equal(t, 2, r.CloseAll())
	assert.Equal(t, int32(1), c1.closes.Load())
	assert.Equal(t, int32(1), c2.closes.Load())

	_, err := r.Register(&fakeConn{})
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestSession_BindOnce(t *testing.T) {
	s := &Session{ID: 1}
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Username())
	assert.False(t, s.Bind(nil))

	bob := &models.User{Username: "bob"}
	assert.True(t, s.Bind(bob))
	assert.False(t, s.Bind(&models.User{Username: "admin"}))

	assert.True(t, s.Authenticated())
	assert.Same(t, bob, s.User())
	assert.Equal(t, "bob", s.Username())
}
