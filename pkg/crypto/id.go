package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PeerIDSize is the byte length of a peer ID before hex encoding
const PeerIDSize = 20

// Hash generates a BLAKE2b-256 hash
func Hash(data []byte) ([]byte, error) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	hash.Write(data)
	return hash.Sum(nil), nil
}

// GenerateNonce generates a random nonce
func GenerateNonce(size int) ([]byte, error) {
	nonce := make([]byte, size)
	_, err := rand.Read(nonce)
	if err != nil {
		return nil, err
	}
	return nonce, nil
}

// NewPeerID generates a random node identity: the hex-encoded BLAKE2b-160
// digest of a 32-byte nonce
func NewPeerID() (string, error) {
	nonce, err := GenerateNonce(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return PeerIDFromSeed(nonce)
}

// PeerIDFromSeed derives a stable identity from seed
func PeerIDFromSeed(seed []byte) (string, error) {
	hash, err := blake2b.New(PeerIDSize, nil)
	if err != nil {
		return "", err
	}

	hash.Write(seed)
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ShortID returns the first 8 characters of id for log output
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
