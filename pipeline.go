package framewire

import (
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Pipeline is the static composition Link ∘ Transport ∘ Message ∘ Service
// through which application data flows in both directions (spec.md
// §4.6). It owns exactly one of each policy and holds no back-reference
// from any of them into itself, so there is no cycle to break on Close.
type Pipeline struct {
	link      Link
	transport Transport
	message   Message
	service   Service
	dst       EndpointID

	userHandler func(interface{})
	running     uint32 // atomic; 1 while Loop/LoopFor is active
}

// NewPipeline wires the four policies together. dst is the fixed peer
// endpoint SendValue addresses; a Pipeline is bound to one conversation,
// the way the teacher's UDPSession is bound to one remote address.
func NewPipeline(link Link, transport Transport, message Message, service Service, dst EndpointID) *Pipeline {
	return &Pipeline{link: link, transport: transport, message: message, service: service, dst: dst}
}

// SendValue runs the send path: Service.Handle (if a Service is present)
// wraps the actual encode→wrap→write operation, so gating/retry/async
// decorators apply to outbound traffic exactly as they do to inbound
// (spec.md §4.6: "Service.handle (if bidirectional) → Message.encode →
// Transport.wrap → Link.write"). Each call is tagged with a fresh
// correlation id for diagnostics, grounded on original_source's own
// per-message correlation ids; github.com/satori/go.uuid supplies it.
func (p *Pipeline) SendValue(v interface{}) error {
	corrID := uuid.NewV4()

	send := func(raw interface{}) {
		b, ok := p.message.Encode(raw)
		if !ok {
			Logf(ERROR, "pipeline send %s: message encode rejected value of type %T", corrID, raw)
			return
		}
		wrapped, err := p.transport.Wrap(b)
		if err != nil {
			Logf(ERROR, "pipeline send %s: transport wrap failed: %v", corrID, err)
			return
		}
		if !p.link.Write(p.dst, wrapped) {
			Logf(WARN, "pipeline send %s: link write failed (dst=%s)", corrID, p.dst)
		}
	}

	if p.service != nil {
		return p.service.Handle(v, send)
	}
	send(v)
	return nil
}

// ProcessOne runs the receive path once: Link.Read → Transport.Unwrap →
// Message.Dispatch(payload, λ msg ⇒ Service.Handle(msg, userHandler))
// (spec.md §4.6). didWork is false when Link.Read had nothing pending;
// Loop/LoopFor use that to decide whether to yield.
func (p *Pipeline) ProcessOne() (didWork bool, err error) {
	b, ok := p.link.Read()
	if !ok {
		return false, nil
	}
	unwrapped, err := p.transport.Unwrap(b)
	if err != nil {
		return true, err
	}
	deliver := func(msg interface{}) {
		if p.service != nil {
			if herr := p.service.Handle(msg, p.userHandler); herr != nil {
				Logf(ERROR, "pipeline dispatch: service handle failed: %v", herr)
			}
		} else if p.userHandler != nil {
			p.userHandler(msg)
		}
	}
	if err := p.message.Dispatch(unwrapped, deliver); err != nil {
		return true, err
	}
	return true, nil
}

// Loop repeatedly calls ProcessOne with handler installed as the
// receive-path's terminal callback, yielding ~100µs whenever a call
// produces no work, until Stop is called (spec.md §5).
func (p *Pipeline) Loop(handler func(interface{})) {
	p.userHandler = handler
	atomic.StoreUint32(&p.running, 1)
	for atomic.LoadUint32(&p.running) != 0 {
		didWork, err := p.ProcessOne()
		if err != nil {
			Logf(WARN, "pipeline loop: process_one error: %v", err)
		}
		if !didWork {
			time.Sleep(yieldInterval)
		}
	}
}

// LoopFor behaves like Loop but also returns once deadline has elapsed.
func (p *Pipeline) LoopFor(handler func(interface{}), deadline time.Duration) {
	p.userHandler = handler
	atomic.StoreUint32(&p.running, 1)
	cutoff := time.Now().Add(deadline)
	for atomic.LoadUint32(&p.running) != 0 && time.Now().Before(cutoff) {
		didWork, err := p.ProcessOne()
		if err != nil {
			Logf(WARN, "pipeline loop_for: process_one error: %v", err)
		}
		if !didWork {
			time.Sleep(yieldInterval)
		}
	}
}

// Stop requests the running Loop/LoopFor to return from its next
// iteration (spec.md §5: atomic flag, release on Stop, acquire on read).
func (p *Pipeline) Stop() {
	atomic.StoreUint32(&p.running, 0)
}

// Close stops the loop and releases the underlying Link.
func (p *Pipeline) Close() error {
	p.Stop()
	return p.link.Close()
}
