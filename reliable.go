package framewire

// ReliableContext is the per-peer sliding-window send/receive engine from
// spec.md §3.4/§4.3. It is window-oriented rather than connection-oriented:
// there is no handshake and no teardown. The caller is responsible for
// serialising OnSend/OnReceive/OnAck/Poll with respect to each other per
// context (spec.md §5) — ReliableContext itself holds no lock, mirroring
// how the teacher's KCP struct is single-threaded and left to the caller's
// session lock (sess.go).
type ReliableContext struct {
	windowSize uint32

	nextTxSeq    uint32
	txWindowBase uint32
	nextRxSeq    uint32
	rxWindowBase uint32

	txPendingMask  uint32
	rxReceivedMask uint32

	txTimestamp [32]uint32
	txFrames    [32][]byte

	rto uint32

	// ackable becomes true once at least one data frame has been
	// accepted in this session. See the §9 open-question resolution in
	// OnReceive: emitting an ACK before any frame has ever been accepted
	// would otherwise carry ack_seq = 0xFFFFFFFF (next_rx_seq-1 when
	// next_rx_seq==0), which spec.md's corrected semantics forbids.
	ackable bool

	lastHeartbeatMs uint32

	Stats ReliableStats
}

// ReliableStats mirrors the teacher's Snmp/Copy() pattern (snmp.go):
// a flat counters struct with an atomic-free Snapshot since ReliableContext
// is single-threaded by contract. FramesSent aliases next_tx_seq per
// spec.md §9's note that the source mixes totals and event counts; it is
// kept as a named, documented alias rather than silently dropped.
type ReliableStats struct {
	Retransmits uint32
	Duplicates  uint32
	OutOfOrder  uint32
	FramesSent  uint32
	FramesAcked uint32
}

// Snapshot returns a copy of the current stats.
func (s *ReliableStats) Snapshot() ReliableStats { return *s }

const defaultRTOMs = 1000

// NewReliableContext initialises a context with windowSize clamped to
// [1, 32] (spec.md §4.3.1: "clamp window_size to min(configured_max, 32)").
func NewReliableContext(windowSize int) *ReliableContext {
	if windowSize < 1 {
		windowSize = 1
	}
	if windowSize > 32 {
		windowSize = 32
	}
	return &ReliableContext{
		windowSize: uint32(windowSize),
		rto:        defaultRTOMs,
	}
}

// seqDiff computes later-earlier interpreted as a signed 32-bit quantity,
// so sequence comparisons remain correct across a wraparound of the 32-bit
// wire counter (spec.md §9 "Sequence-number arithmetic"), exactly the way
// the teacher's _itimediff compares KCP sequence numbers.
func seqDiff(later, earlier uint32) int32 {
	return int32(later - earlier)
}

// CanSend reports whether the send window has room for another frame
// (spec.md §4.3.7).
func (rc *ReliableContext) CanSend() bool {
	return seqDiff(rc.nextTxSeq, rc.txWindowBase) < int32(rc.windowSize)
}

// OnSend assigns the next sequence number to header and frameBytes (which
// must already hold an encoded frame whose sequence/header_crc fields this
// call overwrites in place), caches the bytes for retransmission, and
// records the send timestamp (spec.md §4.3.2). crcEnabled controls whether
// the re-encoded header_crc is meaningful; when false the field is written
// as 0, the same way BuildAck/BuildHeartbeat leave it with crcEnabled=false.
func (rc *ReliableContext) OnSend(frameBytes []byte, header *Header, nowMs uint32, crcEnabled bool) Code {
	if seqDiff(rc.nextTxSeq, rc.txWindowBase) >= int32(rc.windowSize) {
		return OVERFLOW
	}
	if len(frameBytes) < headerSize {
		return INVALID
	}

	header.Sequence = rc.nextTxSeq
	putLE32(frameBytes[16:20], header.Sequence)
	if crcEnabled {
		header.HeaderCRC = headerCRCFromWire(frameBytes)
	} else {
		header.HeaderCRC = 0
	}
	putLE32(frameBytes[24:28], header.HeaderCRC)

	n := len(frameBytes)
	if n > int(maxFrameSize) {
		n = int(maxFrameSize)
	}
	slot := rc.nextTxSeq % rc.windowSize
	cached := rc.txFrames[slot]
	if cap(cached) < n {
		cached = make([]byte, n)
	} else {
		cached = cached[:n]
	}
	copy(cached, frameBytes[:n])
	rc.txFrames[slot] = cached
	rc.txTimestamp[slot] = nowMs

	if k := rc.nextTxSeq - rc.txWindowBase; k < 32 {
		rc.txPendingMask |= 1 << k
	}
	rc.nextTxSeq++
	rc.Stats.FramesSent = rc.nextTxSeq
	return OK
}

// OnReceive consumes a decoded frame header and, on success, produces a
// cumulative-ACK header for the caller to send back (spec.md §4.3.3).
// A heartbeat frame (FlagHeartbeat set) only refreshes liveness bookkeeping
// and is never sequenced, counted as a duplicate, or ACKed — see
// SPEC_FULL.md's supplemented heartbeat behaviour.
func (rc *ReliableContext) OnReceive(header *Header, nowMs uint32, crcEnabled bool) (Header, Code) {
	if header.Flags&FlagHeartbeat != 0 {
		rc.lastHeartbeatMs = nowMs
		return Header{}, OK
	}

	r := header.Sequence
	diff := seqDiff(r, rc.nextRxSeq)

	switch {
	case diff == 0:
		rc.ackable = true
		rc.nextRxSeq++
		for {
			bitpos := rc.nextRxSeq - rc.rxWindowBase
			if bitpos >= 32 {
				break
			}
			bit := uint32(1) << bitpos
			if rc.rxReceivedMask&bit == 0 {
				break
			}
			rc.rxReceivedMask &^= bit
			rc.nextRxSeq++
		}
		for rc.nextRxSeq-rc.rxWindowBase >= rc.windowSize {
			rc.rxWindowBase++
			rc.rxReceivedMask >>= 1
		}

	case diff > 0:
		o := r - rc.rxWindowBase
		if o < rc.windowSize && o < 32 {
			bit := uint32(1) << o
			if rc.rxReceivedMask&bit != 0 {
				rc.Stats.Duplicates++
			} else {
				rc.Stats.OutOfOrder++
				rc.rxReceivedMask |= bit
			}
		} else {
			return Header{}, INVALID
		}

	default: // diff < 0
		rc.Stats.Duplicates++
	}

	if !rc.ackable {
		// No frame has ever been accepted in this session: spec.md's
		// corrected semantics forbids emitting an ACK that would carry
		// ack_seq = next_rx_seq-1 = 0xFFFFFFFF.
		return Header{}, INVALID
	}
	ack := BuildAck(header, rc.nextRxSeq-1, crcEnabled)
	return ack, OK
}

// OnAck applies a cumulative ACK to the send window (spec.md §4.3.5).
func (rc *ReliableContext) OnAck(ackHeader *Header) Code {
	if ackHeader.Flags&FlagACK == 0 {
		return INVALID
	}
	if seqDiff(ackHeader.Sequence, rc.txWindowBase) < 0 {
		return OK // stale
	}
	shift := uint32(seqDiff(ackHeader.Sequence, rc.txWindowBase)) + 1
	if shift > 32 {
		shift = 32
	}
	if shift >= 32 {
		rc.txPendingMask = 0
	} else {
		rc.txPendingMask >>= shift
	}
	rc.txWindowBase += shift
	rc.Stats.FramesAcked += shift
	return OK
}

// RetransmitFunc is invoked by Poll once per timed-out, still-pending
// frame. user is threaded through unchanged, matching the teacher's
// retransmit_cb(frame, len, user_data) shape.
type RetransmitFunc func(frame []byte, user interface{})

// Poll walks the pending mask and fires cb for every frame whose slot
// timestamp is older than rto (spec.md §4.3.6).
func (rc *ReliableContext) Poll(nowMs uint32, cb RetransmitFunc, user interface{}) {
	limit := rc.windowSize
	if limit > 32 {
		limit = 32
	}
	for i := uint32(0); i < limit; i++ {
		if rc.txPendingMask&(1<<i) == 0 {
			continue
		}
		seq := rc.txWindowBase + i
		slot := seq % rc.windowSize
		if nowMs-rc.txTimestamp[slot] > rc.rto {
			rc.txTimestamp[slot] = nowMs
			rc.Stats.Retransmits++
			cb(rc.txFrames[slot], user)
		}
	}
}

// SetRTO overrides the retransmission timeout, in milliseconds.
func (rc *ReliableContext) SetRTO(ms uint32) { rc.rto = ms }

// RTO returns the current retransmission timeout, in milliseconds.
func (rc *ReliableContext) RTO() uint32 { return rc.rto }

// TxWindowBase, NextTxSeq, RxWindowBase and NextRxSeq expose the raw
// counters for tests and diagnostics.
func (rc *ReliableContext) TxWindowBase() uint32 { return rc.txWindowBase }
func (rc *ReliableContext) NextTxSeq() uint32     { return rc.nextTxSeq }
func (rc *ReliableContext) RxWindowBase() uint32 { return rc.rxWindowBase }
func (rc *ReliableContext) NextRxSeq() uint32     { return rc.nextRxSeq }
