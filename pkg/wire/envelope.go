package wire

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Envelope is a decoded frame: header fields plus the payload they describe
type Envelope struct {
	Protocol string
	Type     TypeCode
	Payload  []byte
}

// Encode builds the full frame for a payload.
// The protocol name is NUL padded to 12 bytes and the length field is the
// exact byte count of the payload.
func Encode(protocol string, code TypeCode, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, &EncodingError{
			Field:  "payload",
			Value:  fmt.Sprintf("%d bytes", len(payload)),
			Reason: "does not fit a 32-bit length",
		}
	}

	header := &Header{
		Protocol: protocol,
		Type:     code,
		Length:   uint32(len(payload)),
	}

	buf, err := header.Encode()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, buf...)
	frame = append(frame, payload...)

	return frame, nil
}

// Encode encodes the envelope to a frame
func (e *Envelope) Encode() ([]byte, error) {
	return Encode(e.Protocol, e.Type, e.Payload)
}

// ReadPayload reads exactly n bytes from r.
// Short reads are retried until n bytes arrive; the stream ending first
// yields ErrTruncatedMessage.
func ReadPayload(r io.Reader, n uint32) ([]byte, error) {
	payload := make([]byte, n)
	if n == 0 {
		return payload, nil
	}

	read, err := io.ReadFull(r, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read payload (%d of %d bytes): %w", read, n, ErrTruncatedMessage)
		}
		return nil, err
	}

	return payload, nil
}

// ReadEnvelope reads one frame from r. maxPayload of zero means DefaultMaxPayload.
func ReadEnvelope(r io.Reader, maxPayload uint32) (*Envelope, error) {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	if header.Length > maxPayload {
		return nil, fmt.Errorf("%s frame of %d bytes: %w", header.Type, header.Length, ErrPayloadTooLarge)
	}

	payload, err := ReadPayload(r, header.Length)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Protocol: header.Protocol,
		Type:     header.Type,
		Payload:  payload,
	}, nil
}

// WriteEnvelope encodes e and writes the whole frame to w
func WriteEnvelope(w io.Writer, e *Envelope) error {
	frame, err := e.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
