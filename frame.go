package framewire

import (
	"encoding/binary"
)

// Wire-level flag bits (spec.md §3.1, part of the external ABI — spec.md
// §6.3 "Numerical values of flags ... must be preserved").
const (
	FlagCompressed  uint8 = 1 << 0
	FlagEncrypted   uint8 = 1 << 1
	FlagZeroCopy    uint8 = 1 << 2
	FlagFragmented  uint8 = 1 << 3
	FlagACK         uint8 = 1 << 4
	FlagNACK        uint8 = 1 << 5
	FlagHeartbeat   uint8 = 1 << 6
	FlagExtendedHdr uint8 = 1 << 7
)

const (
	frameMagic   uint16 = 0xA55A
	frameVersion uint8  = 1

	// headerSize is the fixed 32-byte wire header (spec.md §3.1).
	headerSize = 32
)

// defaultMaxFrameSize is spec.md §6.1's standard-mode MAX_FRAME_SIZE; used
// by functions in this file that are not handed an explicit Config.
const defaultMaxFrameSize = 1024

// maxFrameSize is the active MAX_FRAME_SIZE knob (spec.md §6.1/§6.5),
// enforced by DecodeFrame's upper-bound invariant check (EncodeFrame does
// not check it; it only checks that dst is large enough). It
// defaults to standard mode and is lowered by Config.Apply() in MCU mode.
var maxFrameSize uint32 = defaultMaxFrameSize

// SetMaxFrameSize updates the active MAX_FRAME_SIZE knob.
func SetMaxFrameSize(n int) { maxFrameSize = uint32(n) }

// Header is the in-memory, native-endian form of the 32-byte wire frame
// header (spec.md §3.1). Field order matches the wire layout; Encode/Decode
// are responsible for the little-endian byte-swapping.
type Header struct {
	Magic       uint16
	Version     uint8
	Flags       uint8
	Length      uint32
	SrcEndpoint uint32
	DstEndpoint uint32
	Sequence    uint32
	CmdType     uint32
	HeaderCRC   uint32
	PayloadCRC  uint32
}

func putLE16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putLE32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getLE16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
func getLE32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }

// putHeaderBytes writes h into b[0:32] in little-endian wire order, with
// header_crc forced to headerCRCOverride (callers pass 0 to compute the
// CRC, or the real value to re-serialize a validated header).
func putHeaderBytes(b []byte, h *Header, headerCRCOverride uint32) {
	putLE16(b[0:2], h.Magic)
	b[2] = h.Version
	b[3] = h.Flags
	putLE32(b[4:8], h.Length)
	putLE32(b[8:12], h.SrcEndpoint)
	putLE32(b[12:16], h.DstEndpoint)
	putLE32(b[16:20], h.Sequence)
	putLE32(b[20:24], h.CmdType)
	putLE32(b[24:28], headerCRCOverride)
	putLE32(b[28:32], h.PayloadCRC)
}

func getHeaderBytes(b []byte) Header {
	var h Header
	h.Magic = getLE16(b[0:2])
	h.Version = b[2]
	h.Flags = b[3]
	h.Length = getLE32(b[4:8])
	h.SrcEndpoint = getLE32(b[8:12])
	h.DstEndpoint = getLE32(b[12:16])
	h.Sequence = getLE32(b[16:20])
	h.CmdType = getLE32(b[20:24])
	h.HeaderCRC = getLE32(b[24:28])
	h.PayloadCRC = getLE32(b[28:32])
	return h
}

// headerCRC computes the CRC-32 over the little-endian byte image of h
// with the header_crc field zeroed, exactly as spec.md §3.1 and §4.2
// require ("not over the native representation" — spec.md §9).
func headerCRC(h *Header) uint32 {
	var b [headerSize]byte
	putHeaderBytes(b[:], h, 0)
	return crc32(b[:28])
}

// headerCRCFromWire recomputes the header CRC over a received 32-byte
// wire header, zeroing bytes 24..27 (the header_crc field) before hashing
// — the received CRC value itself must never be folded into its own
// verification.
func headerCRCFromWire(src []byte) uint32 {
	var b [28]byte
	copy(b[:24], src[:24])
	// b[24:28] already zero.
	return crc32(b[:])
}

// EncodeFrame writes h and payload into dst (spec.md §4.2 encode).
// It fails NOMEM if dst is too small. payload_crc is computed only when
// crcEnabled is true, else left 0 (spec.md "if enabled, else 0").
func EncodeFrame(dst []byte, payload []byte, h Header, crcEnabled bool) (int, Code) {
	total := headerSize + len(payload)
	if len(dst) < total {
		return 0, NOMEM
	}
	h.Magic = frameMagic
	h.Version = frameVersion
	h.Length = uint32(total)
	if crcEnabled && len(payload) > 0 {
		h.PayloadCRC = crc32(payload)
	} else {
		h.PayloadCRC = 0
	}
	putHeaderBytes(dst[:headerSize], &h, 0)
	h.HeaderCRC = crc32(dst[:28])
	putLE32(dst[24:28], h.HeaderCRC)
	copy(dst[headerSize:total], payload)
	logFrame(DEBUG, "encode", &h)
	return total, OK
}

// DecodeFrame parses src into a Header and payload (spec.md §4.2 decode).
// payload must be at least the header's length-32 bytes (NOMEM otherwise);
// DecodeFrame copies the
// payload into it and returns the number of payload bytes written.
func DecodeFrame(src []byte, payload []byte, crcEnabled bool) (Header, int, Code) {
	var h Header
	if len(src) < headerSize {
		return h, 0, INVALID
	}
	h = getHeaderBytes(src[:headerSize])
	if h.Magic != frameMagic || h.Version != frameVersion {
		return h, 0, INVALID
	}
	if h.Length < headerSize || h.Length > maxFrameSize || int(h.Length) > len(src) {
		return h, 0, INVALID
	}
	wantCRC := headerCRCFromWire(src)
	if wantCRC != h.HeaderCRC {
		return h, 0, CRC
	}
	payloadLen := int(h.Length) - headerSize
	if len(payload) < payloadLen {
		return h, 0, NOMEM
	}
	copy(payload, src[headerSize:int(h.Length)])
	if crcEnabled && payloadLen > 0 {
		if crc32(payload[:payloadLen]) != h.PayloadCRC {
			return h, 0, CRC
		}
	}
	logFrame(DEBUG, "decode", &h)
	return h, payloadLen, OK
}

// ValidateHeader performs the header-only sanity check spec.md §4.2
// describes for stream framers that need to detect a frame boundary
// without paying for a full decode (e.g. a length-prefixed link).
func ValidateHeader(h *Header, receivedLen int) Code {
	if h.Magic != frameMagic || h.Version != frameVersion {
		return INVALID
	}
	if h.Length < headerSize {
		return INVALID
	}
	if receivedLen >= 0 && uint32(receivedLen) != h.Length {
		return INVALID
	}
	return OK
}

// TryDecodeStream reads the length field at offset 4 and either reports
// "pending" (not enough bytes buffered yet, consumed=0) or decodes exactly
// one frame from the front of buf, per spec.md §4.2.
func TryDecodeStream(buf []byte, payload []byte, crcEnabled bool) (h Header, payloadLen int, consumed int, pending bool, code Code) {
	if len(buf) < headerSize {
		return Header{}, 0, 0, true, OK
	}
	length := getLE32(buf[4:8])
	if length < headerSize {
		return Header{}, 0, 0, false, INVALID
	}
	if uint32(len(buf)) < length {
		return Header{}, 0, 0, true, OK
	}
	h, payloadLen, code = DecodeFrame(buf[:length], payload, crcEnabled)
	if code != OK {
		return h, payloadLen, 0, false, code
	}
	return h, payloadLen, int(length), false, OK
}

// BuildAck constructs a cumulative-ACK header in response to peer, per
// spec.md §4.3.4: src/dst swapped, flags=ACK, sequence=ackSeq, length=32,
// header_crc computed with the field zeroed when crcEnabled.
func BuildAck(peer *Header, ackSeq uint32, crcEnabled bool) Header {
	var out Header
	out.Magic = frameMagic
	out.Version = frameVersion
	out.Flags = FlagACK
	out.Length = headerSize
	out.SrcEndpoint = peer.DstEndpoint
	out.DstEndpoint = peer.SrcEndpoint
	out.Sequence = ackSeq
	out.CmdType = 0
	if crcEnabled {
		out.HeaderCRC = headerCRC(&out)
	}
	return out
}

// BuildHeartbeat constructs a heartbeat frame (flag bit 6, spec.md §3.1;
// the wire bit is reserved by the original spec but no operation in it
// builds or consumes one — see SPEC_FULL.md's supplemented-features
// section). A heartbeat carries no payload and is not subject to the
// reliable engine's sequencing: on_receive treats it as a liveness signal,
// not a data or ACK frame.
func BuildHeartbeat(src, dst uint32, crcEnabled bool) Header {
	var out Header
	out.Magic = frameMagic
	out.Version = frameVersion
	out.Flags = FlagHeartbeat
	out.Length = headerSize
	out.SrcEndpoint = src
	out.DstEndpoint = dst
	if crcEnabled {
		out.HeaderCRC = headerCRC(&out)
	}
	return out
}
