package p2p

import (
	"context"

	"github.com/ZentaChain/zentalk-p2p/pkg/wire"
)

// Direction tells a message handler whether a frame asks for something or answers it
type Direction string

const (
	Request  Direction = "request"
	Response Direction = "response"
)

// MessageType is the capability every registered message type provides.
// Pack builds a complete frame; Handle processes a received payload.
type MessageType interface {
	Pack(dir Direction, data []byte) ([]byte, error)
	Handle(c *Conn, payload []byte) error
}

// Factory builds a message type bound to one protocol engine
type Factory func(p *Protocol) MessageType

// BroadcastResult is the outcome of sending one frame to one registry entry
type BroadcastResult struct {
	PeerID string
	Sent   bool
	Reply  *wire.Envelope
	Err    error
}

// Variant is implemented by concrete protocols on top of the engine.
// Fan-out strategy and the exit sequence are protocol specific.
type Variant interface {
	Broadcast(ctx context.Context, frame []byte, waitReply bool) []BroadcastResult
	Shutdown(ctx context.Context)
}
