package framewire

import (
	"encoding/binary"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
)

// Shared-memory multi-reader ring (spec.md §3.6/§4.5): one writer per
// endpoint, up to MaxReadersPerEndpoint registered readers, bounded by the
// slowest reader. This file holds the platform-independent layout and
// logic; shmring_linux.go and shmring_generic.go supply the OS-backed
// segment mapping and the cross-process named mutex.
//
// Layout (byte offsets from the start of the mapped region):
//
//	[0, controlBlockSize)                         control block
//	for each endpoint slot e in [0, MaxEndpoints):
//	  [ringHeaderSize)                            write_pos (atomic, cache-line padded)
//	  [MaxReadersPerEndpoint * readerSlotSize)     reader slots (cache-line padded)
//	  [BufferSize)                                 byte region
//
// The topology (the fixed set of participating endpoints and their slot
// assignment) is agreed out of band by all processes attaching to the
// segment — framewire does not invent a discovery protocol (spec.md §1
// Non-goals: "no discovery or naming service").

const (
	shmMagic   uint32 = 0x53484D32
	shmVersion uint32 = 2

	cacheLineSize     = 64
	controlBlockSize  = cacheLineSize
	ringHeaderSize    = cacheLineSize
	readerSlotSize    = cacheLineSize
	shmMsgHeaderSize  = 24
	shmReaderIDEmpty  = 0xFFFFFFFF
	shmMutexTimeoutMs = 1000
)

// SharedRingConfig describes the fixed shape of a shared segment. All
// processes attaching to the same named segment must agree on these
// values: the creator records its values in the control block, but a later
// openSegment neither reads nor checks them and lays out the region from
// its own cfg.
type SharedRingConfig struct {
	BufferSize            uint32 // power of two, enforced by openSegment
	MaxEndpoints          uint32
	MaxReadersPerEndpoint uint32
}

func (c SharedRingConfig) endpointRegionSize() int {
	return ringHeaderSize + int(c.MaxReadersPerEndpoint)*readerSlotSize + int(c.BufferSize)
}

func (c SharedRingConfig) totalSize() int {
	return controlBlockSize + int(c.MaxEndpoints)*c.endpointRegionSize()
}

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// SharedSegment is the open handle to a shared-memory segment. One
// control block, one multi-reader ring per participating endpoint.
type SharedSegment struct {
	cfg    SharedRingConfig
	mem    []byte
	closer func() error
	local  EndpointID
	peers  []EndpointID // fixed topology, slot index == position in this slice
	mus    []*namedMutex
}

func nowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

func atU32(mem []byte, off int) *uint32 { return (*uint32)(unsafe.Pointer(&mem[off])) }
func atU64(mem []byte, off int) *uint64 { return (*uint64)(unsafe.Pointer(&mem[off])) }

// openSegment opens or creates the backing region and initialises the
// control block if it was newly created. mapSegment is supplied by the
// platform-specific file (shmring_linux.go / shmring_generic.go).
func openSegment(name string, cfg SharedRingConfig, local EndpointID, peers []EndpointID) (*SharedSegment, error) {
	if !isPowerOfTwo(cfg.BufferSize) {
		return nil, newErr(INVALID, "buffer_size must be a power of two", nil)
	}
	mem, created, closer, err := acquireMapping(name, cfg.totalSize())
	if err != nil {
		return nil, newErr(PLATFORM, "map shared segment", err)
	}

	seg := &SharedSegment{cfg: cfg, mem: mem, closer: closer, local: local, peers: peers}

	if created {
		atomic.StoreUint32(atU32(mem, 0), shmMagic)
		atomic.StoreUint32(atU32(mem, 4), shmVersion)
		atomic.StoreUint32(atU32(mem, 8), cfg.BufferSize)
		atomic.StoreUint32(atU32(mem, 12), cfg.MaxEndpoints)
		atomic.StoreUint32(atU32(mem, 16), cfg.MaxReadersPerEndpoint)
		atomic.StoreUint32(atU32(mem, 20), 0) // ref_count
		for e := 0; e < int(cfg.MaxEndpoints); e++ {
			base := seg.regionOffset(e) + ringHeaderSize
			for r := 0; r < int(cfg.MaxReadersPerEndpoint); r++ {
				off := base + r*readerSlotSize
				atomic.StoreUint32(atU32(mem, off+8), 0)
				atomic.StoreUint32(atU32(mem, off+12), shmReaderIDEmpty)
			}
		}
	} else {
		if atomic.LoadUint32(atU32(mem, 0)) != shmMagic || atomic.LoadUint32(atU32(mem, 4)) != shmVersion {
			closer()
			return nil, newErr(INVALID, "shared segment magic/version mismatch", nil)
		}
	}

	atomic.AddUint32(atU32(mem, 20), 1)

	mus := make([]*namedMutex, len(peers))
	for i := range peers {
		m, err := openNamedMutex(name, i)
		if err != nil {
			closer()
			return nil, newErr(PLATFORM, "open endpoint mutex", err)
		}
		mus[i] = m
	}
	seg.mus = mus

	for i, ep := range peers {
		if ep.Equal(local) {
			continue
		}
		seg.RegisterReader(i, local.Compact())
	}
	return seg, nil
}

func (s *SharedSegment) regionOffset(slot int) int {
	return controlBlockSize + slot*s.cfg.endpointRegionSize()
}

func (s *SharedSegment) writePosAddr(slot int) *uint64 {
	return atU64(s.mem, s.regionOffset(slot))
}

func (s *SharedSegment) readerSlotOffset(slot, reader int) int {
	return s.regionOffset(slot) + ringHeaderSize + reader*readerSlotSize
}

func (s *SharedSegment) bufferOffset(slot int) int {
	return s.regionOffset(slot) + ringHeaderSize + int(s.cfg.MaxReadersPerEndpoint)*readerSlotSize
}

// slotOf returns the slot index for ep, or -1 if ep is not part of the
// segment's fixed topology.
func (s *SharedSegment) slotOf(ep EndpointID) int {
	for i, p := range s.peers {
		if p.Equal(ep) {
			return i
		}
	}
	return -1
}

// RegisterReader atomically claims the first free reader slot for
// endpoint slot, joining at the current write position so historical data
// is skipped (spec.md §4.5.2).
func (s *SharedSegment) RegisterReader(slot int, readerID uint32) bool {
	n := int(s.cfg.MaxReadersPerEndpoint)
	for r := 0; r < n; r++ {
		off := s.readerSlotOffset(slot, r)
		activeAddr := atU32(s.mem, off+8)
		if atomic.CompareAndSwapUint32(activeAddr, 0, 1) {
			atomic.StoreUint32(atU32(s.mem, off+12), readerID)
			wp := atomic.LoadUint64(s.writePosAddr(slot))
			atomic.StoreUint64(atU64(s.mem, off), wp)
			atomic.StoreUint64(atU64(s.mem, off+16), nowMillis())
			return true
		}
	}
	return false
}

// UnregisterReader clears the slot owned by readerID, if any.
func (s *SharedSegment) UnregisterReader(slot int, readerID uint32) bool {
	n := int(s.cfg.MaxReadersPerEndpoint)
	for r := 0; r < n; r++ {
		off := s.readerSlotOffset(slot, r)
		if atomic.LoadUint32(atU32(s.mem, off+8)) == 1 && atomic.LoadUint32(atU32(s.mem, off+12)) == readerID {
			atomic.StoreUint32(atU32(s.mem, off+8), 0)
			atomic.StoreUint32(atU32(s.mem, off+12), shmReaderIDEmpty)
			return true
		}
	}
	return false
}

func (s *SharedSegment) slowestReaderPos(slot int) uint64 {
	wp := atomic.LoadUint64(s.writePosAddr(slot))
	slowest := wp
	n := int(s.cfg.MaxReadersPerEndpoint)
	any := false
	for r := 0; r < n; r++ {
		off := s.readerSlotOffset(slot, r)
		if atomic.LoadUint32(atU32(s.mem, off+8)) == 0 {
			continue
		}
		rp := atomic.LoadUint64(atU64(s.mem, off))
		if !any || rp < slowest {
			slowest = rp
			any = true
		}
	}
	if !any {
		return wp
	}
	return slowest
}

func (s *SharedSegment) writeWrapped(slot int, pos uint64, data []byte) {
	bufOff := s.bufferOffset(slot)
	size := uint64(s.cfg.BufferSize)
	start := int(pos % size)
	first := len(data)
	if first > int(size)-start {
		first = int(size) - start
	}
	copy(s.mem[bufOff+start:bufOff+start+first], data[:first])
	if first < len(data) {
		copy(s.mem[bufOff:bufOff+len(data)-first], data[first:])
	}
}

func (s *SharedSegment) readWrapped(slot int, pos uint64, dst []byte) {
	bufOff := s.bufferOffset(slot)
	size := uint64(s.cfg.BufferSize)
	start := int(pos % size)
	first := len(dst)
	if first > int(size)-start {
		first = int(size) - start
	}
	copy(dst[:first], s.mem[bufOff+start:bufOff+start+first])
	if first < len(dst) {
		copy(dst[first:], s.mem[bufOff:bufOff+len(dst)-first])
	}
}

// Write performs a broadcast write to the ring owned by the endpoint at
// slot, bounded by the slowest active reader (spec.md §4.5.3). It takes
// the endpoint's named mutex for the duration of the call — "one writer
// per endpoint, serialised by the endpoint's cross-process recursive
// mutex" (spec.md §5).
func (s *SharedSegment) Write(slot int, payload []byte, senderID uint32) bool {
	if !s.mus[slot].Lock(shmMutexTimeoutMs * time.Millisecond) {
		return false
	}
	defer s.mus[slot].Unlock()

	slowest := s.slowestReaderPos(slot)
	wp := atomic.LoadUint64(s.writePosAddr(slot))
	capacity := uint64(s.cfg.BufferSize)
	available := capacity - (wp - slowest)
	need := uint64(shmMsgHeaderSize + len(payload))
	if need > available {
		return false
	}

	var hdr [shmMsgHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:8], senderID)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(wp))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(nowMillis()))
	binary.LittleEndian.PutUint32(hdr[16:20], 0) // crc32 placeholder, informational only
	hdr[20] = 0                                  // flags
	// hdr[21:24] reserved, left zero

	s.writeWrapped(slot, wp, hdr[:])
	s.writeWrapped(slot, wp+shmMsgHeaderSize, payload)
	atomic.StoreUint64(s.writePosAddr(slot), wp+need)
	return true
}

// Read pops the next message for readerID from the ring owned by slot, or
// reports absent if nothing new has arrived or the in-flight message is
// not yet fully published (spec.md §4.5.4).
func (s *SharedSegment) Read(slot int, readerID uint32) ([]byte, bool) {
	n := int(s.cfg.MaxReadersPerEndpoint)
	readerOff := -1
	for r := 0; r < n; r++ {
		off := s.readerSlotOffset(slot, r)
		if atomic.LoadUint32(atU32(s.mem, off+8)) == 1 && atomic.LoadUint32(atU32(s.mem, off+12)) == readerID {
			readerOff = off
			break
		}
	}
	if readerOff == -1 {
		return nil, false
	}

	r := atomic.LoadUint64(atU64(s.mem, readerOff))
	w := atomic.LoadUint64(s.writePosAddr(slot))
	if w-r < shmMsgHeaderSize {
		return nil, false
	}
	var hdr [shmMsgHeaderSize]byte
	s.readWrapped(slot, r, hdr[:])
	length := binary.LittleEndian.Uint32(hdr[0:4])
	if w-r < uint64(shmMsgHeaderSize)+uint64(length) {
		return nil, false // incomplete, do not advance
	}
	payload := make([]byte, length)
	s.readWrapped(slot, r+shmMsgHeaderSize, payload)
	atomic.StoreUint64(atU64(s.mem, readerOff), r+uint64(shmMsgHeaderSize)+uint64(length))
	atomic.StoreUint64(atU64(s.mem, readerOff+16), nowMillis())
	return payload, true
}

// Broadcast writes payload to every peer endpoint's ring except local
// (spec.md §4.5.5). It does not short-circuit on the first failure;
// partial success is left to caller policy, and the boolean return is the
// conjunction of every attempted write.
func (s *SharedSegment) Broadcast(payload []byte) bool {
	allOK := true
	for i, ep := range s.peers {
		if ep.Equal(s.local) {
			continue
		}
		if !s.Write(i, payload, s.local.Compact()) {
			allOK = false
		}
	}
	return allOK
}

// ReadFrom reads the next message from the ring owned by ep for the reader
// registered there as readerID, reporting absent if ep is not part of the
// segment's fixed topology.
func (s *SharedSegment) ReadFrom(ep EndpointID, readerID uint32) ([]byte, bool) {
	slot := s.slotOf(ep)
	if slot < 0 {
		return nil, false
	}
	return s.Read(slot, readerID)
}

// Close unregisters the local endpoint as a reader from every peer,
// decrements ref_count, and — if this was the last attached process —
// destroys the per-endpoint mutexes before unmapping (spec.md §4.5.6).
func (s *SharedSegment) Close() error {
	for i, ep := range s.peers {
		if ep.Equal(s.local) {
			continue
		}
		s.UnregisterReader(i, s.local.Compact())
	}
	prev := atomic.AddUint32(atU32(s.mem, 20), ^uint32(0)) + 1 // value before the decrement
	if prev == 1 {
		for _, m := range s.mus {
			m.Destroy()
		}
	}
	if s.closer != nil {
		if err := s.closer(); err != nil {
			return errors.Wrap(err, "unmap shared segment")
		}
	}
	return nil
}

// RefCount reads the control block's live attach count.
func (s *SharedSegment) RefCount() uint32 {
	return atomic.LoadUint32(atU32(s.mem, 20))
}
