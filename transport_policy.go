package framewire

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Built-in Transport implementations (spec.md §4.6). Grounded on the
// teacher's own length-prefixed/CRC-checked framing in tunnel.go and
// kcp_encoding.go, generalised to the Transport interface's wrap/unwrap
// shape instead of being hard-wired into one session type.

// PassThrough is the identity Transport.
type PassThrough struct{}

func (PassThrough) Wrap(b []byte) ([]byte, error)   { return b, nil }
func (PassThrough) Unwrap(b []byte) ([]byte, error) { return b, nil }

// LengthPrefixed prepends a 4-byte little-endian length, rejecting
// payloads beyond MAX_FRAME_SIZE on both wrap and unwrap (spec.md §4.6).
type LengthPrefixed struct{}

func (LengthPrefixed) Wrap(b []byte) ([]byte, error) {
	if uint32(len(b)) > maxFrameSize {
		return nil, errors.Errorf("payload of %d bytes exceeds max frame size %d", len(b), maxFrameSize)
	}
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(b)))
	copy(out[4:], b)
	return out, nil
}

func (LengthPrefixed) Unwrap(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, errors.New("length-prefixed payload shorter than its own length field")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if n > maxFrameSize {
		return nil, errors.Errorf("declared length %d exceeds max frame size %d", n, maxFrameSize)
	}
	if uint32(len(b)-4) < n {
		return nil, errors.New("length-prefixed payload truncated")
	}
	return b[4 : 4+n], nil
}

// CrcTransport appends a 4-byte CRC-32 over the payload on wrap, and
// verifies it on unwrap (spec.md §4.6), using the same table-driven IEEE
// CRC-32 as the wire frame header (crc.go).
type CrcTransport struct{}

func (CrcTransport) Wrap(b []byte) ([]byte, error) {
	out := make([]byte, len(b)+4)
	copy(out, b)
	sum := crc32(b)
	binary.LittleEndian.PutUint32(out[len(b):], sum)
	return out, nil
}

func (CrcTransport) Unwrap(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, errors.New("crc transport payload shorter than trailing CRC")
	}
	payload := b[:len(b)-4]
	want := binary.LittleEndian.Uint32(b[len(b)-4:])
	if crc32(payload) != want {
		return nil, errors.New("crc transport checksum mismatch")
	}
	return payload, nil
}

// Timestamped prepends an 8-byte little-endian millisecond timestamp on
// wrap, and records the last observed value on unwrap (spec.md §4.6).
type Timestamped struct {
	LastObservedMs uint64
}

func (t *Timestamped) Wrap(b []byte) ([]byte, error) {
	out := make([]byte, 8+len(b))
	binary.LittleEndian.PutUint64(out[:8], uint64(time.Now().UnixMilli()))
	copy(out[8:], b)
	return out, nil
}

func (t *Timestamped) Unwrap(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, errors.New("timestamped payload shorter than its own timestamp field")
	}
	t.LastObservedMs = binary.LittleEndian.Uint64(b[:8])
	return b[8:], nil
}
