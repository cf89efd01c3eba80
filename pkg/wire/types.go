package wire

// Frame layout constants
const (
	// Protocol name field, NUL padded
	ProtocolNameSize = 12

	// Type code field, exactly four ASCII bytes
	TypeCodeSize = 4

	// Payload length field (uint32, big-endian)
	LengthSize = 4

	// Header size
	HeaderSize = ProtocolNameSize + TypeCodeSize + LengthSize

	// DefaultMaxPayload bounds the allocation made for a single inbound payload
	DefaultMaxPayload uint32 = 16 << 20
)

// TypeCode identifies a message type on the wire (e.g. "JOIN")
type TypeCode string

// Valid reports whether the code fits the 4-byte type field
func (t TypeCode) Valid() bool {
	return len(t) == TypeCodeSize
}

func (t TypeCode) String() string {
	return string(t)
}
