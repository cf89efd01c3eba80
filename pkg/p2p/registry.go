package p2p

import (
	"net"
	"strconv"
	"strings"
	"sync"
)

// Peer is a registry entry. ID is the identity; Address and Port are the
// peer's current network location.
type Peer struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Endpoint returns the dialable host:port form of the peer's location
func (p Peer) Endpoint() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.Port))
}

// matchesEndpoint compares the location against an "address:port" query.
// Both the bracketed IPv6 form and the plain "address:port" form are accepted.
func (p Peer) matchesEndpoint(query string) bool {
	if query == p.Endpoint() {
		return true
	}
	return query == p.Address+":"+strconv.Itoa(p.Port)
}

// Registry manages known peers. At most one entry exists per ID and
// iteration follows insertion order.
type Registry struct {
	peers map[string]Peer // key: peer ID
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates an empty peer registry
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]Peer),
	}
}

// Add inserts the peer unless its ID is already registered.
// The first writer wins: a later Add with the same ID leaves the entry untouched.
func (r *Registry) Add(p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[p.ID]; exists {
		return false
	}

	r.peers[p.ID] = p
	r.order = append(r.order, p.ID)
	return true
}

// Remove deletes the peer with the given ID
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; !exists {
		return false
	}

	delete(r.peers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the peer with exactly this ID
func (r *Registry) Get(id string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// Find resolves a query to a peer. A query containing ':' is matched against
// peer locations ("address:port"); anything else is matched as a case-sensitive
// substring of the peer ID. The first match in registry order wins.
func (r *Registry) Find(query string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byEndpoint := strings.Contains(query, ":")

	for _, id := range r.order {
		p := r.peers[id]
		if byEndpoint {
			if p.matchesEndpoint(query) {
				return p, true
			}
			continue
		}
		if strings.Contains(p.ID, query) {
			return p, true
		}
	}

	return Peer{}, false
}

// List returns a snapshot of all peers in registry order
func (r *Registry) List() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.order))
	for _, id := range r.order {
		peers = append(peers, r.peers[id])
	}
	return peers
}

// Len returns the number of registered peers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
