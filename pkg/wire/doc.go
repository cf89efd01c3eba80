// Package wire implements the fixed-layout frame exchanged on every peer connection.
//
// # Frame Format
//
// Every frame is a 20-byte header followed by the payload:
//   - Protocol name (12 bytes): ASCII, NUL padded (e.g. "ClassicV1")
//   - Type code (4 bytes): ASCII message type (e.g. "JOIN", "LIST", "QUIT", "MESG")
//   - Length (4 bytes): payload length, uint32 big-endian
//   - Payload (Length bytes): message-type defined encoding
//
// # Usage Example
//
//	frame, err := wire.Encode("ClassicV1", "MESG", payload)
//	if err != nil {
//	    return err
//	}
//	conn.Write(frame)
//
//	// On the other side
//	env, err := wire.ReadEnvelope(conn, 0)
//
// The payload is read in a loop until exactly Length bytes have arrived;
// a stream that ends early yields ErrTruncatedMessage, never a partial payload.
package wire
