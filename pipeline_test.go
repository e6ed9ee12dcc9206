package framewire

import (
	"sync"
	"testing"
	"time"
)

// memLink is an in-memory Link used only by pipeline_test.go: Write
// appends to an inbox shared with whichever memLink it is paired against,
// Read pops from its own inbox.
type memLink struct {
	defaultLink
	mu    sync.Mutex
	inbox [][]byte
	peer  *memLink
}

func newMemLinkPair() (*memLink, *memLink) {
	a := &memLink{}
	b := &memLink{}
	a.peer = b
	b.peer = a
	return a, b
}

func (l *memLink) MTU() int { return 1024 }

func (l *memLink) Write(dst EndpointID, b []byte) bool {
	cp := make([]byte, len(b))
	copy(cp, b)
	l.peer.mu.Lock()
	l.peer.inbox = append(l.peer.inbox, cp)
	l.peer.mu.Unlock()
	return true
}

func (l *memLink) Read() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, false
	}
	b := l.inbox[0]
	l.inbox = l.inbox[1:]
	return b, true
}

func TestPipelineSendAndProcessOne(t *testing.T) {
	a, b := newMemLinkPair()
	sender := NewPipeline(a, PassThrough{}, RawMessage{}, nil, EndpointID{NodeID: 2})
	receiver := NewPipeline(b, PassThrough{}, RawMessage{}, nil, EndpointID{NodeID: 1})

	if err := sender.SendValue([]byte("hi")); err != nil {
		t.Fatalf("SendValue: %v", err)
	}

	var got interface{}
	receiver.userHandler = func(v interface{}) { got = v }
	didWork, err := receiver.ProcessOne()
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if !didWork {
		t.Fatal("ProcessOne should report didWork=true when a datagram was waiting")
	}
	if string(got.([]byte)) != "hi" {
		t.Fatalf("got %v, want \"hi\"", got)
	}
}

func TestPipelineProcessOneNoWork(t *testing.T) {
	a, _ := newMemLinkPair()
	p := NewPipeline(a, PassThrough{}, RawMessage{}, nil, EndpointID{})
	didWork, err := p.ProcessOne()
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if didWork {
		t.Fatal("ProcessOne should report didWork=false on an empty link")
	}
}

func TestPipelineLoopStop(t *testing.T) {
	a, b := newMemLinkPair()
	sender := NewPipeline(a, PassThrough{}, RawMessage{}, nil, EndpointID{})
	receiver := NewPipeline(b, PassThrough{}, RawMessage{}, nil, EndpointID{})

	var mu sync.Mutex
	received := 0
	done := make(chan struct{})
	go func() {
		receiver.Loop(func(v interface{}) {
			mu.Lock()
			received++
			mu.Unlock()
		})
		close(done)
	}()

	sender.SendValue([]byte("one"))
	sender.SendValue([]byte("two"))

	time.Sleep(20 * time.Millisecond)
	receiver.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Loop did not return after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if received != 2 {
		t.Fatalf("received = %d, want 2", received)
	}
}

func TestPipelineSendValueWithService(t *testing.T) {
	a, b := newMemLinkPair()
	stats := &StatisticsService{Base: NoneService{}}
	sender := NewPipeline(a, PassThrough{}, RawMessage{}, stats, EndpointID{})
	_ = b

	sender.SendValue([]byte("x"))
	sender.SendValue([]byte("y"))
	if stats.Handled != 2 {
		t.Fatalf("Handled = %d, want 2", stats.Handled)
	}
}
