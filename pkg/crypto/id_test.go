package crypto

import (
	"encoding/hex"
	"testing"
)

func TestHash(t *testing.T) {
	hash, err := Hash([]byte{})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// BLAKE2b-256 of the empty input
	want := "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"
	if got := hex.EncodeToString(hash); got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
}

func TestNewPeerID(t *testing.T) {
	id, err := NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID() error = %v", err)
	}

	if len(id) != PeerIDSize*2 {
		t.Errorf("NewPeerID() length = %d, want %d", len(id), PeerIDSize*2)
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("NewPeerID() returned invalid hex: %v", err)
	}

	other, err := NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID() second call error = %v", err)
	}
	if id == other {
		t.Error("NewPeerID() produced identical IDs")
	}
}

func TestPeerIDFromSeed(t *testing.T) {
	a, err := PeerIDFromSeed([]byte("node-a"))
	if err != nil {
		t.Fatalf("PeerIDFromSeed() error = %v", err)
	}
	again, _ := PeerIDFromSeed([]byte("node-a"))
	b, _ := PeerIDFromSeed([]byte("node-b"))

	if a != again {
		t.Errorf("PeerIDFromSeed() not deterministic: %s != %s", a, again)
	}
	if a == b {
		t.Error("PeerIDFromSeed() produced the same ID for different seeds")
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "01234567"},
	}

	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
