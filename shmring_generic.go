//go:build !linux

package framewire

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Non-Linux fallback backing for SharedSegment: an in-process byte arena
// shared by name, rather than a true cross-process mapping. This serves
// single-process multi-goroutine topologies (and tests) on platforms
// where framewire has no OS-specific shared-memory path wired up yet —
// spec.md §6.5's THREAD_SAFE knob still applies via the namedMutex below,
// it is only the "visible from another process" property that is lost
// here. A genuine cross-process mapping on these platforms would need
// their own syscall package, which is out of scope until a concrete
// target is named (see DESIGN.md).

var (
	genericSegmentsMu sync.Mutex
	genericSegments   = map[string][]byte{}
)

func mapSegment(name string, size int) (mem []byte, created bool, closer func() error, err error) {
	genericSegmentsMu.Lock()
	defer genericSegmentsMu.Unlock()

	if existing, ok := genericSegments[name]; ok {
		if len(existing) != size {
			return nil, false, nil, errors.Errorf("shared segment %q already open with a different size", name)
		}
		return existing, false, func() error { return nil }, nil
	}
	buf := make([]byte, size)
	genericSegments[name] = buf
	return buf, true, func() error { return nil }, nil
}

// namedMutex is a plain in-process mutex with a timed TryLock, sufficient
// when the backing arena itself is process-local.
type namedMutex struct {
	mu sync.Mutex
	ch chan struct{} // 1-buffered, acts as a try-lockable semaphore
}

func openNamedMutex(segmentName string, slot int) (*namedMutex, error) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return &namedMutex{ch: ch}, nil
}

func (m *namedMutex) Lock(timeout time.Duration) bool {
	select {
	case <-m.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m *namedMutex) Unlock() {
	select {
	case m.ch <- struct{}{}:
	default:
	}
}

func (m *namedMutex) Destroy() {}
