//go:build linux

package framewire

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Linux backing for SharedSegment: a /dev/shm-resident file, mmap'd
// MAP_SHARED, with one flock'd lock file per endpoint slot standing in for
// the cross-process recursive mutex spec.md §5 requires ("readers must
// never block the writer for longer than one scheduling quantum" —
// flock is cheap enough here that contention is bounded by the OS
// scheduler rather than by framewire itself).
//
// Grounded on the teacher's platform-split transport files (readloop_linux.go,
// tx_linux.go, batchconn_linux.go), which reach for golang.org/x/sys/unix /
// golang.org/x/net's x/sys-backed socket options on Linux and fall back to a
// portable implementation elsewhere.

func shmPath(name string) string {
	return filepath.Join("/dev/shm", "framewire-"+name)
}

func mapSegment(name string, size int) (mem []byte, created bool, closer func() error, err error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, false, nil, err
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, false, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, false, nil, err
	}
	created = info.Size() == 0
	if created {
		if err := f.Truncate(int64(size)); err != nil {
			unix.Flock(int(f.Fd()), unix.LOCK_UN)
			f.Close()
			return nil, false, nil, err
		}
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)

	mem, err = unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, false, nil, err
	}

	closer = func() error {
		if err := unix.Munmap(mem); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return mem, created, closer, nil
}

// namedMutex wraps a flock'd lock file giving cross-process mutual
// exclusion for one endpoint's writer side.
type namedMutex struct {
	f *os.File
}

func openNamedMutex(segmentName string, slot int) (*namedMutex, error) {
	path := filepath.Join("/dev/shm", fmt.Sprintf("framewire-%s.mu%d", segmentName, slot))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	return &namedMutex{f: f}, nil
}

// Lock attempts to take the flock within timeout, polling at a short
// interval since flock itself has no timed variant on Linux.
func (m *namedMutex) Lock(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(m.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Unlock releases the flock.
func (m *namedMutex) Unlock() {
	unix.Flock(int(m.f.Fd()), unix.LOCK_UN)
}

// Destroy closes the lock file's descriptor; the backing inode is removed
// by whichever process called Close() last across the whole segment's
// lifetime, matching the control block's ref-counted teardown.
func (m *namedMutex) Destroy() {
	path := m.f.Name()
	m.f.Close()
	os.Remove(path)
}
