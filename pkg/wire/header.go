package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrShortHeader      = errors.New("short header")
	ErrTruncatedMessage = errors.New("truncated message")
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum size")
)

// EncodingError reports a field that cannot be represented in the frame
type EncodingError struct {
	Field  string
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s %q: %s", e.Field, e.Value, e.Reason)
}

// Header represents the fixed 20-byte frame header
type Header struct {
	Protocol string   // Protocol name (at most 12 bytes)
	Type     TypeCode // Message type code (exactly 4 bytes)
	Length   uint32   // Payload length
}

// Validate checks that the header fields fit the fixed layout
func (h *Header) Validate() error {
	if len(h.Protocol) > ProtocolNameSize {
		return &EncodingError{
			Field:  "protocol name",
			Value:  h.Protocol,
			Reason: fmt.Sprintf("longer than %d bytes", ProtocolNameSize),
		}
	}

	if !h.Type.Valid() {
		return &EncodingError{
			Field:  "type code",
			Value:  string(h.Type),
			Reason: fmt.Sprintf("must be exactly %d bytes", TypeCodeSize),
		}
	}

	return nil
}

// Encode encodes the header to bytes
func (h *Header) Encode() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderSize)

	// Remaining bytes of the name field stay zero (NUL padding)
	copy(buf[0:ProtocolNameSize], h.Protocol)
	copy(buf[ProtocolNameSize:ProtocolNameSize+TypeCodeSize], h.Type)
	binary.BigEndian.PutUint32(buf[ProtocolNameSize+TypeCodeSize:HeaderSize], h.Length)

	return buf, nil
}

// Decode decodes the header from bytes
func (h *Header) Decode(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrShortHeader
	}

	h.Protocol = string(bytes.TrimRight(buf[0:ProtocolNameSize], "\x00"))
	h.Type = TypeCode(buf[ProtocolNameSize : ProtocolNameSize+TypeCodeSize])
	h.Length = binary.BigEndian.Uint32(buf[ProtocolNameSize+TypeCodeSize : HeaderSize])

	return nil
}

// DecodeHeader decodes a header from its 20-byte representation
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	err := h.Decode(buf)
	return h, err
}

// ReadHeader reads a header from an io.Reader.
// It returns io.EOF when the stream ends before any byte of the header arrives
// and ErrTruncatedMessage when it ends part way through.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read header: %w", ErrTruncatedMessage)
		}
		return nil, err
	}

	header := &Header{}
	if err := header.Decode(buf); err != nil {
		return nil, err
	}

	return header, nil
}

// WriteHeader writes a header to an io.Writer
func WriteHeader(w io.Writer, h *Header) error {
	buf, err := h.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
