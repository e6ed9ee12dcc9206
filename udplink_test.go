package framewire

import (
	"bytes"
	"testing"
	"time"
)

func TestUDPLinkWriteRead(t *testing.T) {
	a, err := NewUDPLink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPLink a: %v", err)
	}
	defer a.Close()
	b, err := NewUDPLink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPLink b: %v", err)
	}
	defer b.Close()

	epA := EndpointID{NodeID: 1}
	epB := EndpointID{NodeID: 2}
	if err := a.RegisterPeer(epB, b.LocalAddr().String()); err != nil {
		t.Fatalf("RegisterPeer: %v", err)
	}
	if err := b.RegisterPeer(epA, a.LocalAddr().String()); err != nil {
		t.Fatalf("RegisterPeer: %v", err)
	}

	if !a.Write(epB, []byte("ping")) {
		t.Fatal("Write to a registered peer should succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := b.Read(); ok {
			if !bytes.Equal(got, []byte("ping")) {
				t.Fatalf("got %q, want %q", got, "ping")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("never received the datagram written to the peer link")
}

func TestUDPLinkWriteUnknownPeerFails(t *testing.T) {
	a, err := NewUDPLink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPLink: %v", err)
	}
	defer a.Close()
	if a.Write(EndpointID{NodeID: 99}, []byte("x")) {
		t.Fatal("Write to an unregistered peer should fail")
	}
}

func TestUDPLinkStats(t *testing.T) {
	a, err := NewUDPLink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPLink a: %v", err)
	}
	defer a.Close()
	b, err := NewUDPLink("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPLink b: %v", err)
	}
	defer b.Close()

	epB := EndpointID{NodeID: 2}
	a.RegisterPeer(epB, b.LocalAddr().String())
	a.Write(epB, []byte("stat"))

	if a.Stats().FramesSent != 1 {
		t.Fatalf("FramesSent = %d, want 1", a.Stats().FramesSent)
	}
}
