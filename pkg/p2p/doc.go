// Package p2p implements the protocol engine shared by every peer wire protocol variant.
//
// A Protocol owns the peer registry and a dispatch table mapping 4-byte type
// codes to MessageType handlers. Connections follow a one-message model: each
// accepted socket is served by its own goroutine that reads exactly one frame,
// dispatches it, and closes the socket. Outbound traffic dials a new Conn per
// message.
//
// Concrete protocols register their message types once, before Listen, and
// implement Variant for broadcast and shutdown.
package p2p
