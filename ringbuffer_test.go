package framewire

import "testing"

func TestByteRingEmptyRejected(t *testing.T) {
	if NewByteRing(nil, nil) != nil {
		t.Fatal("expected nil ByteRing for zero-length buffer")
	}
}

func TestByteRingPutGet(t *testing.T) {
	r := NewByteRing(make([]byte, 4), nil)
	if !r.IsEmpty() {
		t.Fatal("expected empty ring on construction")
	}
	for i := 0; i < 3; i++ {
		if !r.Put(byte(i)) {
			t.Fatalf("Put(%d) unexpectedly failed", i)
		}
	}
	if !r.IsFull() {
		t.Fatal("expected ring to report full with size-1 bytes queued")
	}
	if r.Put(99) {
		t.Fatal("expected Put to fail once full")
	}
	for i := 0; i < 3; i++ {
		b, ok := r.Get()
		if !ok || b != byte(i) {
			t.Fatalf("expected Get() == %d, got %d (ok=%v)", i, b, ok)
		}
	}
	if !r.IsEmpty() {
		t.Fatal("expected ring empty after draining")
	}
}

func TestByteRingWriteReadWrap(t *testing.T) {
	r := NewByteRing(make([]byte, 8), nil)
	// force the write pointer to wrap by writing/reading repeatedly
	for round := 0; round < 5; round++ {
		src := []byte{1, 2, 3, 4, 5}
		n := r.Write(src)
		if n != 5 {
			t.Fatalf("round %d: expected to write 5 bytes, wrote %d", round, n)
		}
		dst := make([]byte, 5)
		n = r.Read(dst)
		if n != 5 {
			t.Fatalf("round %d: expected to read 5 bytes, read %d", round, n)
		}
		for i, b := range dst {
			if b != src[i] {
				t.Fatalf("round %d: byte %d mismatch: want %d got %d", round, i, src[i], b)
			}
		}
	}
}

func TestByteRingFreeSpace(t *testing.T) {
	r := NewByteRing(make([]byte, 8), nil)
	if got := r.FreeSpace(); got != 7 {
		t.Fatalf("expected free space 7 on an empty size-8 ring, got %d", got)
	}
	r.Write([]byte{1, 2, 3})
	if got := r.FreeSpace(); got != 4 {
		t.Fatalf("expected free space 4 after writing 3 bytes, got %d", got)
	}
}

func TestByteRingPeekDoesNotAdvance(t *testing.T) {
	r := NewByteRing(make([]byte, 8), nil)
	r.Write([]byte{9, 8, 7})
	peeked := make([]byte, 3)
	if n := r.Peek(peeked); n != 3 {
		t.Fatalf("expected to peek 3 bytes, got %d", n)
	}
	read := make([]byte, 3)
	if n := r.Read(read); n != 3 {
		t.Fatalf("expected to read 3 bytes after peek, got %d", n)
	}
	for i := range peeked {
		if peeked[i] != read[i] {
			t.Fatalf("peek/read mismatch at %d: %d vs %d", i, peeked[i], read[i])
		}
	}
}

func TestByteRingPartialWriteWhenFull(t *testing.T) {
	r := NewByteRing(make([]byte, 4), nil)
	n := r.Write([]byte{1, 2, 3, 4, 5})
	if n != 3 {
		t.Fatalf("expected partial write of 3 bytes into a size-4 ring (1 slot reserved), got %d", n)
	}
}

type countingCS struct {
	enters, exits int
}

func (c *countingCS) Enter() { c.enters++ }
func (c *countingCS) Exit()  { c.exits++ }

func TestByteRingUsesCriticalSection(t *testing.T) {
	cs := &countingCS{}
	r := NewByteRing(make([]byte, 4), cs)
	r.Put(1)
	r.Get()
	if cs.enters == 0 || cs.enters != cs.exits {
		t.Fatalf("expected balanced Enter/Exit calls, got enters=%d exits=%d", cs.enters, cs.exits)
	}
}
