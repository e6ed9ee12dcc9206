package framewire

import "testing"

func TestEndpointIDEqualAndLess(t *testing.T) {
	a := EndpointID{NodeID: 1, ProcID: 2, PortID: 3}
	b := EndpointID{NodeID: 1, ProcID: 2, PortID: 3}
	c := EndpointID{NodeID: 1, ProcID: 2, PortID: 4}
	if !a.Equal(b) {
		t.Fatal("expected identical endpoints to be Equal")
	}
	if !a.Less(c) {
		t.Fatal("expected a < c by port_id")
	}
	if c.Less(a) {
		t.Fatal("expected c not < a")
	}
}

func TestEndpointIDInvalidAndBroadcast(t *testing.T) {
	if !(EndpointID{}).IsInvalid() {
		t.Fatal("zero-value EndpointID must be invalid")
	}
	if !BroadcastEndpoint.IsBroadcast() {
		t.Fatal("BroadcastEndpoint must report IsBroadcast")
	}
	if BroadcastEndpoint.IsInvalid() {
		t.Fatal("BroadcastEndpoint must not be confused with InvalidEndpoint")
	}
}

func TestEndpointIDIsLocal(t *testing.T) {
	if !(EndpointID{NodeID: 0}).IsLocal() {
		t.Fatal("node_id 0 must be local")
	}
	if !(EndpointID{NodeID: 127 << 24}).IsLocal() {
		t.Fatal("node_id in 127.0.0.0/8 must be local")
	}
	if (EndpointID{NodeID: 10 << 24}).IsLocal() {
		t.Fatal("node_id 10.x.x.x must not be local")
	}
}

func TestEndpointIDHashStableAndDistinct(t *testing.T) {
	a := EndpointID{NodeID: 1, ProcID: 2, PortID: 3, Reserved: 4}
	b := EndpointID{NodeID: 1, ProcID: 2, PortID: 3, Reserved: 4}
	if a.Hash() != b.Hash() {
		t.Fatal("Hash must be a pure function of the endpoint's fields")
	}
	c := EndpointID{NodeID: 1, ProcID: 2, PortID: 3, Reserved: 5}
	if a.Hash() == c.Hash() {
		t.Fatal("distinct endpoints should not usually collide (this is a probabilistic check)")
	}
	if a.Compact() != uint32(a.Hash()) {
		t.Fatal("Compact must be the low 32 bits of Hash")
	}
}

func TestEndpointIDString(t *testing.T) {
	e := EndpointID{NodeID: 1, ProcID: 2, PortID: 3, Reserved: 4}
	want := "00000001:00000002:00000003:00000004"
	if got := e.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
