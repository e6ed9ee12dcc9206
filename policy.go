package framewire

import "time"

// LinkStats is the optional snapshot a Link may report back through its
// Stats method (spec.md §4.6). Every field is a plain counter; there is no
// requirement that a Link track all of them, only that it returns zero
// values for whichever it does not.
type LinkStats struct {
	BytesSent     uint64
	BytesReceived uint64
	FramesSent    uint64
	FramesReceived uint64
	WriteErrors   uint64
}

// Link is the lowest layer of the Pipeline: raw byte transfer addressed by
// EndpointID, with no framing or reliability semantics of its own
// (spec.md §4.6). IsConnected, Close and Stats are optional in spirit —
// defaultLink below supplies sensible defaults so a minimal Link
// implementation only needs MTU/Write/Read.
type Link interface {
	MTU() int
	Write(dst EndpointID, b []byte) bool
	Read() ([]byte, bool)
	IsConnected() bool
	Close() error
	Stats() LinkStats
}

// Transport wraps and unwraps byte payloads. Pure and stateless except for
// length/CRC/timestamp bookkeeping (spec.md §4.6). Composite below chains
// two Transports right-nested: Composite(A, B).Wrap = B.Wrap ∘ A.Wrap,
// Composite(A, B).Unwrap = A.Unwrap ∘ B.Unwrap.
type Transport interface {
	Wrap(b []byte) ([]byte, error)
	Unwrap(b []byte) ([]byte, error)
}

// Message encodes application values to bytes and dispatches decoded bytes
// back to a handler (spec.md §4.6).
type Message interface {
	Encode(v interface{}) ([]byte, bool)
	Dispatch(b []byte, handler func(interface{})) error
}

// Service is the application-facing policy: it receives a dispatched
// message and decides what happens to it, ultimately forwarding to
// handler (spec.md §4.6). Decorators (Statistics, Filter, Retry) wrap a
// base Service and forward Handle to it.
type Service interface {
	Handle(msg interface{}, handler func(interface{})) error
}

// compositeTransport implements Transport as two transports right-nested.
type compositeTransport struct {
	a, b Transport
}

// Composite returns a Transport equivalent to applying a, then b, on wrap,
// and the reverse order on unwrap — spec.md §4.6's "compositions are
// right-nested" rule, stated precisely: Composite(A,B).Wrap(x) =
// B.Wrap(A.Wrap(x)), Composite(A,B).Unwrap(x) = A.Unwrap(B.Unwrap(x)).
func Composite(a, b Transport) Transport {
	return compositeTransport{a: a, b: b}
}

func (c compositeTransport) Wrap(b []byte) ([]byte, error) {
	out, err := c.a.Wrap(b)
	if err != nil {
		return nil, err
	}
	return c.b.Wrap(out)
}

func (c compositeTransport) Unwrap(b []byte) ([]byte, error) {
	out, err := c.b.Unwrap(b)
	if err != nil {
		return nil, err
	}
	return c.a.Unwrap(out)
}

// defaultLinkStats, defaultLinkClose and defaultLinkConnected let a Link
// implementation embed defaultLink to pick up the optional methods
// (spec.md §4.6's "optional: default true" / "optional: default no-op" /
// "optional: default zero value") without restating boilerplate, the way
// the teacher embeds small no-op helper types across its transport
// implementations (transport.go).
type defaultLink struct{}

func (defaultLink) IsConnected() bool { return true }
func (defaultLink) Close() error      { return nil }
func (defaultLink) Stats() LinkStats  { return LinkStats{} }

// yieldInterval is how long the Pipeline loop sleeps when process_one
// reports no work, matching spec.md §5's "~100 microseconds".
const yieldInterval = 100 * time.Microsecond
