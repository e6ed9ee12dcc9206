package framewire

import (
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPLink is the reference Link implementation (spec.md §4.6): UDP
// datagrams addressed by EndpointID through a small peer table, read via
// a background goroutine so Read() never blocks the Pipeline loop.
//
// Grounded on the teacher's UDPTunnel (tunnel.go): same die-channel/
// sync.Once shutdown, same cast to an x/net batch-capable PacketConn
// (golang.org/x/net/ipv4 or ipv6) so a single Link can later be extended
// to true multi-message ReadBatch/WriteBatch without changing its shape.
type UDPLink struct {
	defaultLink

	conn  *net.UDPConn
	xconn batchPacketConn // ipv4.PacketConn or ipv6.PacketConn

	mu    sync.RWMutex
	peers map[uint32]*net.UDPAddr // keyed by EndpointID.Compact()

	inbound chan inboundDatagram

	die     chan struct{}
	dieOnce sync.Once

	mtu int

	statsMu sync.Mutex
	stats   LinkStats
}

type inboundDatagram struct {
	data []byte
	addr *net.UDPAddr
}

// batchPacketConn is the subset of ipv4/ipv6 PacketConn that UDPLink uses;
// both satisfy it.
type batchPacketConn interface {
	ReadBatch(ms []ipv4.Message, flags int) (int, error)
	WriteBatch(ms []ipv4.Message, flags int) (int, error)
}

const defaultUDPLinkMTU = 1472 // 1500 Ethernet MTU minus typical IPv4+UDP headers

// NewUDPLink binds laddr and starts the background read loop.
func NewUDPLink(laddr string) (*UDPLink, error) {
	addr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve udp link address")
	}
	network := "udp4"
	if addr.IP.To4() == nil {
		network = "udp"
	}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen udp link")
	}

	l := &UDPLink{
		conn:    conn,
		peers:   make(map[uint32]*net.UDPAddr),
		inbound: make(chan inboundDatagram, 256),
		die:     make(chan struct{}),
		mtu:     defaultUDPLinkMTU,
	}
	if addr.IP.To4() != nil {
		l.xconn = ipv4.NewPacketConn(conn)
	} else {
		l.xconn = ipv6.NewPacketConn(conn)
	}

	go l.readLoop()
	Logf(INFO, "UDPLink listening on %v", addr)
	return l, nil
}

// RegisterPeer binds an EndpointID to the UDP address framewire should
// reach it at. Write fails for any destination not registered here.
func (l *UDPLink) RegisterPeer(ep EndpointID, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return errors.Wrap(err, "resolve peer address")
	}
	l.mu.Lock()
	l.peers[ep.Compact()] = udpAddr
	l.mu.Unlock()
	return nil
}

func (l *UDPLink) readLoop() {
	buf := make([]byte, 65536)
	msgs := []ipv4.Message{{Buffers: [][]byte{buf}}}
	for {
		select {
		case <-l.die:
			return
		default:
		}
		n, err := l.xconn.ReadBatch(msgs, 0)
		if err != nil {
			select {
			case <-l.die:
				return
			default:
			}
			Logf(WARN, "UDPLink readLoop error: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			m := msgs[i]
			data := make([]byte, m.N)
			copy(data, buf[:m.N])
			udpAddr, _ := m.Addr.(*net.UDPAddr)
			l.statsMu.Lock()
			l.stats.BytesReceived += uint64(m.N)
			l.stats.FramesReceived++
			l.statsMu.Unlock()
			select {
			case l.inbound <- inboundDatagram{data: data, addr: udpAddr}:
			default:
				Logf(WARN, "UDPLink readLoop: inbound queue full, dropping datagram from %v", udpAddr)
			}
		}
	}
}

// MTU returns the link's usable payload size per datagram.
func (l *UDPLink) MTU() int { return l.mtu }

// LocalAddr returns the address the link is bound to, useful for
// registering this link as a peer on the other side of a conversation.
func (l *UDPLink) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Write sends b to the UDP address registered for dst, returning false if
// dst is unknown or the write fails.
func (l *UDPLink) Write(dst EndpointID, b []byte) bool {
	l.mu.RLock()
	addr, ok := l.peers[dst.Compact()]
	l.mu.RUnlock()
	if !ok {
		Logf(WARN, "UDPLink Write: no peer address registered for %s", dst)
		return false
	}
	msgs := []ipv4.Message{{Buffers: [][]byte{b}, Addr: addr}}
	n, err := l.xconn.WriteBatch(msgs, 0)
	l.statsMu.Lock()
	if err != nil || n == 0 {
		l.stats.WriteErrors++
	} else {
		l.stats.BytesSent += uint64(len(b))
		l.stats.FramesSent++
	}
	l.statsMu.Unlock()
	return err == nil && n > 0
}

// Read returns the next received datagram's payload, or absent if none is
// queued. The source address is not returned (readLoop logs it only when
// it drops a datagram); EndpointID attribution for a received frame comes from the frame's own
// src_endpoint field once decoded, not from the transport-layer source.
func (l *UDPLink) Read() ([]byte, bool) {
	select {
	case dgram := <-l.inbound:
		return dgram.data, true
	default:
		return nil, false
	}
}

// IsConnected reports whether the underlying socket is still open.
func (l *UDPLink) IsConnected() bool {
	select {
	case <-l.die:
		return false
	default:
		return true
	}
}

// Close stops the read loop and releases the socket.
func (l *UDPLink) Close() error {
	var err error
	l.dieOnce.Do(func() {
		close(l.die)
		err = l.conn.Close()
	})
	if err == nil {
		return nil
	}
	if err == io.ErrClosedPipe {
		return nil
	}
	return err
}

// Stats returns a snapshot of byte/frame counters (spec.md §4.6's
// optional Link.stats()).
func (l *UDPLink) Stats() LinkStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}
