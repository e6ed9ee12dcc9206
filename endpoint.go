package framewire

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// EndpointID is the 128-bit logical address from spec.md §3.3: a
// (node_id, proc_id, port_id, reserved) tuple of four 32-bit values,
// lexicographically ordered. The wire frame header (spec.md §3.1) carries
// only a 32-bit digest of an endpoint — its Compact() — as src_endpoint/
// dst_endpoint; EndpointID is the full address used above the framing
// layer (registries, the shared-memory ring's reader_id space, Link
// addressing).
type EndpointID struct {
	NodeID   uint32
	ProcID   uint32
	PortID   uint32
	Reserved uint32
}

// InvalidEndpoint and BroadcastEndpoint are the spec.md §3.3 well-known
// constants.
var (
	InvalidEndpoint   = EndpointID{}
	BroadcastEndpoint = EndpointID{NodeID: 0xFFFFFFFF, ProcID: 0xFFFFFFFF, PortID: 0xFFFFFFFF, Reserved: 0}
)

// Equal reports whether e and o address the same endpoint.
func (e EndpointID) Equal(o EndpointID) bool {
	return e.NodeID == o.NodeID && e.ProcID == o.ProcID && e.PortID == o.PortID && e.Reserved == o.Reserved
}

// Less implements the lexicographic ordering spec.md §3.3 requires
// (node_id, then proc_id, then port_id, then reserved).
func (e EndpointID) Less(o EndpointID) bool {
	if e.NodeID != o.NodeID {
		return e.NodeID < o.NodeID
	}
	if e.ProcID != o.ProcID {
		return e.ProcID < o.ProcID
	}
	if e.PortID != o.PortID {
		return e.PortID < o.PortID
	}
	return e.Reserved < o.Reserved
}

// IsInvalid reports whether e equals InvalidEndpoint.
func (e EndpointID) IsInvalid() bool { return e.Equal(InvalidEndpoint) }

// IsBroadcast reports whether e equals BroadcastEndpoint.
func (e EndpointID) IsBroadcast() bool { return e.Equal(BroadcastEndpoint) }

// IsLocal reports whether e is "local" per spec.md §3.3: node_id == 0, or
// node_id falls within 127.0.0.0/8 when interpreted as an IPv4 address.
func (e EndpointID) IsLocal() bool {
	if e.NodeID == 0 {
		return true
	}
	return byte(e.NodeID>>24) == 127
}

// Hash returns a stable hash of e, used as the key for the process-wide
// registries in registry.go (spec.md §3.3 "a stable hash is required"; §9
// "Global registries"). Grounded on the teacher's map.go, which keys its
// ConcurrentMap shards with github.com/OneOfOne/xxhash.
func (e EndpointID) Hash() uint64 {
	var b [16]byte
	putLE32(b[0:4], e.NodeID)
	putLE32(b[4:8], e.ProcID)
	putLE32(b[8:12], e.PortID)
	putLE32(b[12:16], e.Reserved)
	return xxhash.Checksum64(b[:])
}

// Compact returns the 32-bit wire-level endpoint id carried in a frame
// header's src_endpoint/dst_endpoint fields: the low-order 32 bits of the
// hash, so two distinct EndpointIDs collide on the wire only as often as a
// generic 32-bit hash does.
func (e EndpointID) Compact() uint32 {
	return uint32(e.Hash())
}

func (e EndpointID) String() string {
	return fmt.Sprintf("%08x:%08x:%08x:%08x", e.NodeID, e.ProcID, e.PortID, e.Reserved)
}
