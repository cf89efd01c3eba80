package classic

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

// addrConn reports a fixed remote address for an in-memory pipe
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (a addrConn) RemoteAddr() net.Addr {
	return a.remote
}

func remoteConn(t *testing.T, n *Node, ip string) *p2p.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	remote := &net.TCPAddr{IP: net.ParseIP(ip), Port: 51000}
	return p2p.NewConn(n.Protocol, addrConn{Conn: server, remote: remote})
}

func TestObservedLocation(t *testing.T) {
	remote := &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 51000}
	loopback := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 51000}

	tests := []struct {
		name     string
		declared string
		remote   net.Addr
		want     string
	}{
		{"loopback from remote host", "127.0.0.1", remote, "10.0.0.7"},
		{"wildcard from remote host", "0.0.0.0", remote, "10.0.0.7"},
		{"localhost from remote host", "localhost", remote, "10.0.0.7"},
		{"ipv6 loopback from remote host", "::1", remote, "10.0.0.7"},
		{"routable address kept", "192.168.1.20", remote, "192.168.1.20"},
		{"hostname kept", "node.example.org", remote, "node.example.org"},
		{"loopback sender keeps loopback", "127.0.0.1", loopback, "127.0.0.1"},
		{"no remote address", "127.0.0.1", nil, "127.0.0.1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := observedLocation(p2p.Peer{ID: "b", Address: tt.declared, Port: 9000}, tt.remote)
			assert.Equal(t, tt.want, got.Address)
			assert.Equal(t, 9000, got.Port)
			assert.Equal(t, "b", got.ID)
		})
	}
}

func TestJoinFromRemoteHostWithLoopbackSelf(t *testing.T) {
	n := newTestNode(t, "node-a", Options{})
	c := remoteConn(t, n, "10.0.0.7")

	payload := framePayload(t, p2p.Response, p2p.Peer{ID: "node-b", Address: "127.0.0.1", Port: 9000}, nil)
	handled, err := n.Dispatch(c, TypeJoin, payload)
	require.NoError(t, err)
	assert.True(t, handled)

	peer, ok := n.GetPeer("node-b")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.7", peer.Address)
	assert.Equal(t, 9000, peer.Port)
}

func TestJoinFromRemoteHostKeepsRoutableAddress(t *testing.T) {
	n := newTestNode(t, "node-a", Options{})
	c := remoteConn(t, n, "10.0.0.7")

	payload := framePayload(t, p2p.Response, p2p.Peer{ID: "node-b", Address: "192.168.1.20", Port: 9000}, nil)
	_, err := n.Dispatch(c, TypeJoin, payload)
	require.NoError(t, err)

	peer, ok := n.GetPeer("node-b")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.20", peer.Address)
}

func TestListResponseSkipsPeersWithoutLocation(t *testing.T) {
	n := newTestNode(t, "node-a", Options{})

	listed := []p2p.Peer{
		{ID: "good", Address: "10.0.0.2", Port: 9000},
		{ID: "no-address", Address: "", Port: 9000},
		{ID: "no-port", Address: "10.0.0.3", Port: 0},
		{ID: "bad-port", Address: "10.0.0.4", Port: 70000},
		{ID: "negative-port", Address: "10.0.0.5", Port: -1},
	}
	payload := framePayload(t, p2p.Response, p2p.Peer{ID: "node-b", Address: "10.0.0.9", Port: 9000}, listed)

	handled, err := n.Dispatch(nil, TypeList, payload)
	require.NoError(t, err)
	assert.True(t, handled)

	assert.Equal(t, 1, n.PeerCount())
	assert.True(t, n.IsJoinedTo("good"))
	for _, id := range []string{"no-address", "no-port", "bad-port", "negative-port"} {
		assert.False(t, n.IsJoinedTo(id), "%s should be skipped", id)
	}
}
