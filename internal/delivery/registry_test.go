package delivery

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetCreatesOncePerCourier(t *testing.T) {
	built := 0
	r := NewRegistry(func(id Identity) *Manager {
		built++
		return NewManager(id, Config{Remote: &mockRemote{}})
	})

	id := Identity{UserID: "u1", SalesmanID: "SM-1"}
	m1, err := r.Get(id)
	require.NoError(t, err)
	m2, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, built)

	m3, err := r.Get(Identity{UserID: "u1", SalesmanID: "SM-2"})
	require.NoError(t, err)
	assert.NotSame(t, m1, m3)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DisposeDropsManager(t *testing.T) {
	r := NewRegistry(func(id Identity) *Manager { return NewManager(id, Config{}) })
	id := Identity{UserID: "u1", SalesmanID: "SM-1"}
	first, err := r.Get(id)
	require.NoError(t, err)

	r.Dispose("u1")
	assert.Equal(t, 0, r.Len())

	second, err := r.Get(id)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistry_RejectsUnresolvedIdentity(t *testing.T) {
	r := NewRegistry(func(id Identity) *Manager { return NewManager(id, Config{}) })
	_, err := r.Get(Identity{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNoCourier)
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := NewRegistry(func(id Identity) *Manager { return NewManager(id, Config{}) })
	var wg sync.WaitGroup
	got := make([]*Manager, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = r.Get(Identity{UserID: "u1", SalesmanID: "SM-1"})
		}(i)
	}
	wg.Wait()
	for _, m := range got {
		assert.Same(t, got[0], m)
	}
}
