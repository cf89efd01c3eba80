package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPeersSnapshot(t *testing.T) {
	s := openTestStore(t)

	peers := []p2p.Peer{
		{ID: "zeta", Address: "10.0.0.9", Port: 9009},
		{ID: "alpha", Address: "10.0.0.1", Port: 9001},
	}
	require.NoError(t, s.SavePeers(peers))

	loaded, err := s.LoadPeers()
	require.NoError(t, err)
	assert.Equal(t, peers, loaded)

	// A new snapshot replaces the previous one
	require.NoError(t, s.SavePeers(peers[1:]))
	loaded, err = s.LoadPeers()
	require.NoError(t, err)
	assert.Equal(t, peers[1:], loaded)
}

func TestPeersSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SavePeers([]p2p.Peer{{ID: "a", Address: "127.0.0.1", Port: 1}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.LoadPeers()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestSaveMessageDeduplicates(t *testing.T) {
	s := openTestStore(t)

	m := Message{MessageID: "m-1", FromID: "peer-a", Body: "hello", SentAt: 1000}
	require.NoError(t, s.SaveMessage(m))
	require.NoError(t, s.SaveMessage(m))
	require.NoError(t, s.SaveMessage(Message{MessageID: "m-2", FromID: "peer-b", Body: "hi", SentAt: 2000}))

	messages, err := s.Messages(0)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Newest first
	assert.Equal(t, "m-2", messages[0].MessageID)
	assert.Equal(t, "m-1", messages[1].MessageID)
	assert.Equal(t, "hello", messages[1].Body)
	assert.NotZero(t, messages[1].ReceivedAt)

	limited, err := s.Messages(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SavePeers(nil), ErrClosed)
	_, err = s.LoadPeers()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Close(), ErrClosed)
}

func TestCloseDuringWrites(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- s.SaveMessage(Message{MessageID: fmt.Sprintf("m-%d", i), FromID: "peer", Body: "hi"})
		}()
		go func() {
			defer wg.Done()
			_, err := s.Messages(0)
			errs <- err
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- s.Close()
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
		}
	}

	assert.ErrorIs(t, s.Close(), ErrClosed)
}
