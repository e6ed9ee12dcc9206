package framewire

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Built-in Service implementations and decorators (spec.md §4.6).

// NoneService is the pass-through Service: every message goes straight to
// handler.
type NoneService struct{}

func (NoneService) Handle(msg interface{}, handler func(interface{})) error {
	handler(msg)
	return nil
}

// SimpleRouter dispatches by the concrete type of msg to a registered
// handler, falling back to the caller-supplied handler when no route
// matches (spec.md §4.6).
type SimpleRouter struct {
	mu       sync.Mutex
	handlers map[reflect.Type]func(interface{})
}

// NewSimpleRouter constructs an empty router.
func NewSimpleRouter() *SimpleRouter {
	return &SimpleRouter{handlers: make(map[reflect.Type]func(interface{}))}
}

// RegisterHandler routes every message whose concrete type matches
// sample's to fn.
func (r *SimpleRouter) RegisterHandler(sample interface{}, fn func(interface{})) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[reflect.TypeOf(sample)] = fn
}

func (r *SimpleRouter) Handle(msg interface{}, handler func(interface{})) error {
	r.mu.Lock()
	fn, ok := r.handlers[reflect.TypeOf(msg)]
	r.mu.Unlock()
	if ok {
		fn(msg)
	} else {
		handler(msg)
	}
	return nil
}

// asyncItem is one queued (message, handler) pair awaiting the
// AsyncService worker.
type asyncItem struct {
	msg     interface{}
	handler func(interface{})
}

// AsyncService defers Handle to a single worker goroutine draining a
// bounded FIFO (spec.md §4.6: "Async<QueueSize> defers execution to a
// worker that drains a bounded FIFO"). Handle itself never blocks: it
// fails fast with an error once the queue is full, matching boundedQueue's
// contract (ring.go). Grounded on the teacher's dedicated reader/writer
// goroutines (readloop.go/writeloop.go) draining a channel-free queue
// under their own lock rather than relying on unbounded channels.
type AsyncService struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  *boundedQueue
	closed bool
}

// NewAsyncService starts the worker goroutine and returns the service.
func NewAsyncService(queueSize int) *AsyncService {
	s := &AsyncService{queue: newBoundedQueue(queueSize)}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *AsyncService) Handle(msg interface{}, handler func(interface{})) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("async service is closed")
	}
	ok := s.queue.TryPush(asyncItem{msg: msg, handler: handler})
	s.cond.Signal()
	s.mu.Unlock()
	if !ok {
		return errors.New("async service queue full")
	}
	return nil
}

func (s *AsyncService) run() {
	for {
		s.mu.Lock()
		for s.queue.IsEmpty() && !s.closed {
			s.cond.Wait()
		}
		if s.queue.IsEmpty() && s.closed {
			s.mu.Unlock()
			return
		}
		v, _ := s.queue.Pop()
		s.mu.Unlock()

		item := v.(asyncItem)
		item.handler(item.msg)
	}
}

// Close stops the worker once the queue has drained. Pending items are
// still delivered; no new Handle calls are accepted afterwards.
func (s *AsyncService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	return nil
}

// QueueLen reports how many items are currently queued.
func (s *AsyncService) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// StatisticsService decorates a Service, counting calls and errors
// (spec.md §4.6).
type StatisticsService struct {
	Base    Service
	Handled uint64
	Errors  uint64
}

func (s *StatisticsService) Handle(msg interface{}, handler func(interface{})) error {
	atomic.AddUint64(&s.Handled, 1)
	err := s.Base.Handle(msg, handler)
	if err != nil {
		atomic.AddUint64(&s.Errors, 1)
	}
	return err
}

// FilterService decorates a Service, dropping (not forwarding to Base)
// any message Predicate rejects (spec.md §4.6).
type FilterService struct {
	Base      Service
	Predicate func(interface{}) bool
}

func (f *FilterService) Handle(msg interface{}, handler func(interface{})) error {
	if f.Predicate != nil && !f.Predicate(msg) {
		return nil
	}
	return f.Base.Handle(msg, handler)
}

// RetryService decorates a Service, retrying a failing Base.Handle up to
// MaxRetries additional times, waiting Delay between attempts when Delay
// is nonzero (spec.md §4.6: "bounded retry with optional delay").
type RetryService struct {
	Base       Service
	MaxRetries int
	Delay      time.Duration
}

func (r *RetryService) Handle(msg interface{}, handler func(interface{})) error {
	attempts := r.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = r.Base.Handle(msg, handler)
		if lastErr == nil {
			return nil
		}
		if i < attempts-1 && r.Delay > 0 {
			time.Sleep(r.Delay)
		}
	}
	return lastErr
}
