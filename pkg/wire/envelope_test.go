package wire

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		code     TypeCode
		payload  []byte
	}{
		{"empty payload", "ClassicV1", "QUIT", []byte{}},
		{"json payload", "ClassicV1", "JOIN", []byte(`{"dir":"request"}`)},
		{"binary payload", "P", "MESG", []byte{0x00, 0xff, 0x00, 0x10}},
		{"twelve byte name", "ABCDEFGHIJKL", "LIST", bytes.Repeat([]byte("x"), 4096)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.protocol, tt.code, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			if len(frame) != HeaderSize+len(tt.payload) {
				t.Errorf("frame length = %d, want %d", len(frame), HeaderSize+len(tt.payload))
			}

			env, err := ReadEnvelope(bytes.NewReader(frame), 0)
			if err != nil {
				t.Fatalf("ReadEnvelope() error = %v", err)
			}

			if env.Protocol != tt.protocol {
				t.Errorf("Protocol = %q, want %q", env.Protocol, tt.protocol)
			}
			if env.Type != tt.code {
				t.Errorf("Type = %q, want %q", env.Type, tt.code)
			}
			if !bytes.Equal(env.Payload, tt.payload) {
				t.Errorf("Payload mismatch: got %d bytes, want %d", len(env.Payload), len(tt.payload))
			}
		})
	}
}

func TestReadPayloadPartialReads(t *testing.T) {
	payload := bytes.Repeat([]byte("abc"), 100)

	// One byte per Read call
	got, err := ReadPayload(iotest.OneByteReader(bytes.NewReader(payload)), uint32(len(payload)))
	if err != nil {
		t.Fatalf("ReadPayload() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("ReadPayload() returned different bytes")
	}
}

func TestReadPayloadTruncated(t *testing.T) {
	for _, k := range []int{0, 1, 9} {
		_, err := ReadPayload(bytes.NewReader(make([]byte, k)), 10)
		if !errors.Is(err, ErrTruncatedMessage) {
			t.Errorf("ReadPayload() with %d of 10 bytes: error = %v, want %v", k, err, ErrTruncatedMessage)
		}
	}
}

func TestReadEnvelopeTruncatedPayload(t *testing.T) {
	frame, err := Encode("ClassicV1", "MESG", []byte("hello world"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	_, err = ReadEnvelope(bytes.NewReader(frame[:len(frame)-3]), 0)
	if !errors.Is(err, ErrTruncatedMessage) {
		t.Errorf("ReadEnvelope() error = %v, want %v", err, ErrTruncatedMessage)
	}
}

func TestReadEnvelopeTooLarge(t *testing.T) {
	frame, err := Encode("ClassicV1", "MESG", make([]byte, 64))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	_, err = ReadEnvelope(bytes.NewReader(frame), 32)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("ReadEnvelope() error = %v, want %v", err, ErrPayloadTooLarge)
	}
}

func TestEncodeRejectsBadFields(t *testing.T) {
	var encErr *EncodingError

	if _, err := Encode("ThisNameIsTooLong", "JOIN", nil); !errors.As(err, &encErr) {
		t.Errorf("Encode() long name error = %v, want *EncodingError", err)
	}
	if _, err := Encode("ClassicV1", "JN", nil); !errors.As(err, &encErr) {
		t.Errorf("Encode() short code error = %v, want *EncodingError", err)
	}
}
