package p2p

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Add(Peer{ID: "nodeA", Address: "10.0.0.1", Port: 9000}))
	assert.False(t, r.Add(Peer{ID: "nodeA", Address: "10.0.0.9", Port: 9999}))

	assert.Equal(t, 1, r.Len())

	p, ok := r.Get("nodeA")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", p.Address)
	assert.Equal(t, 9000, p.Port)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add(Peer{ID: "a", Address: "10.0.0.1", Port: 1})
	r.Add(Peer{ID: "b", Address: "10.0.0.2", Port: 2})
	r.Add(Peer{ID: "c", Address: "10.0.0.3", Port: 3})

	assert.True(t, r.Remove("b"))
	assert.False(t, r.Remove("b"))
	assert.False(t, r.Remove("missing"))

	ids := []string{}
	for _, p := range r.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry()
	r.Add(Peer{ID: "nodeA123", Address: "1.2.3.4", Port: 9000})
	r.Add(Peer{ID: "nodeB456", Address: "::1", Port: 9001})

	tests := []struct {
		name   string
		query  string
		wantID string
		found  bool
	}{
		{"by endpoint", "1.2.3.4:9000", "nodeA123", true},
		{"by id prefix", "nodeA", "nodeA123", true},
		{"by id infix", "B45", "nodeB456", true},
		{"by bracketed ipv6 endpoint", "[::1]:9001", "nodeB456", true},
		{"by plain ipv6 endpoint", "::1:9001", "nodeB456", true},
		{"endpoint wrong port", "1.2.3.4:9001", "", false},
		{"case sensitive", "nodea", "", false},
		{"no match", "zzz", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p, ok := r.Find(tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, p.ID)
		})
	}
}

func TestRegistryFindFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.Add(Peer{ID: "peer-1", Address: "10.0.0.1", Port: 1})
	r.Add(Peer{ID: "peer-2", Address: "10.0.0.2", Port: 2})

	p, ok := r.Find("peer")
	require.True(t, ok)
	assert.Equal(t, "peer-1", p.ID)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		id := fmt.Sprintf("peer-%d", i%10)
		go func() {
			defer wg.Done()
			r.Add(Peer{ID: id, Address: "127.0.0.1", Port: 9000})
		}()
		go func() {
			defer wg.Done()
			r.Find(id)
		}()
		go func() {
			defer wg.Done()
			r.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
}
