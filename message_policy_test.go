package framewire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRawMessageRoundTrip(t *testing.T) {
	var m RawMessage
	b, ok := m.Encode([]byte("payload"))
	if !ok {
		t.Fatal("RawMessage.Encode should accept a []byte value")
	}
	var got interface{}
	if err := m.Dispatch(b, func(v interface{}) { got = v }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !bytes.Equal(got.([]byte), []byte("payload")) {
		t.Fatal("RawMessage round trip mismatch")
	}
}

func TestRawMessageRejectsNonBytes(t *testing.T) {
	var m RawMessage
	if _, ok := m.Encode(42); ok {
		t.Fatal("RawMessage.Encode should reject non-[]byte values")
	}
}

type widget struct{ Name string }

func (widget) TypeName() string { return "widget" }

type widgetCodec struct{}

func (widgetCodec) Encode(v interface{}) ([]byte, bool) {
	w, ok := v.(widget)
	if !ok {
		return nil, false
	}
	return []byte(w.Name), true
}

func (widgetCodec) Decode(b []byte) (interface{}, error) {
	return widget{Name: string(b)}, nil
}

func TestTypedMessageRoundTrip(t *testing.T) {
	tm := NewTypedMessage(NewTypeRegistry())
	id := tm.Register("widget", widgetCodec{})

	b, ok := tm.Encode(widget{Name: "gizmo"})
	if !ok {
		t.Fatal("Encode should succeed for a registered type")
	}
	if binary.LittleEndian.Uint32(b[:4]) != id {
		t.Fatal("encoded message should be prefixed with the registered type id")
	}

	var got interface{}
	if err := tm.Dispatch(b, func(v interface{}) { got = v }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got.(widget).Name != "gizmo" {
		t.Fatalf("decoded widget = %+v, want Name=gizmo", got)
	}
}

func TestTypedMessageUnknownIDFails(t *testing.T) {
	tm := NewTypedMessage(NewTypeRegistry())
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, 9999)
	if err := tm.Dispatch(b, func(interface{}) {}); err == nil {
		t.Fatal("Dispatch should fail for an id with no registered type")
	}
}

func TestJSONMessageRoundTrip(t *testing.T) {
	var m JSONMessage
	b, ok := m.Encode(map[string]interface{}{"k": "v"})
	if !ok {
		t.Fatal("JSONMessage.Encode failed")
	}
	var got interface{}
	if err := m.Dispatch(b, func(v interface{}) { got = v }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	doc := got.(map[string]interface{})
	if doc["k"] != "v" {
		t.Fatalf("decoded document = %+v", doc)
	}
}

func TestCompressedFlagByte(t *testing.T) {
	c := NewCompressed(RawMessage{})
	b, ok := c.Encode([]byte("abc"))
	if !ok {
		t.Fatal("Compressed.Encode failed")
	}
	if b[0] != 0 {
		t.Fatalf("flag byte with the identity compressor should be 0 (passthrough), got %d", b[0])
	}
	var got interface{}
	if err := c.Dispatch(b, func(v interface{}) { got = v }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !bytes.Equal(got.([]byte), []byte("abc")) {
		t.Fatal("Compressed round trip mismatch")
	}
}

func TestCompressedWithRealCodec(t *testing.T) {
	c := NewCompressed(RawMessage{})
	c.Compress = func(b []byte) []byte { return bytes.Repeat(b, 0) } // shrinks any nonempty input to 0 bytes
	c.Decompress = func(b []byte) ([]byte, error) { return []byte("abc"), nil }
	b, _ := c.Encode([]byte("abc"))
	if b[0] != 1 {
		t.Fatalf("flag byte should be 1 once the compressor actually shrinks the payload, got %d", b[0])
	}
	var got interface{}
	c.Dispatch(b, func(v interface{}) { got = v })
	if !bytes.Equal(got.([]byte), []byte("abc")) {
		t.Fatal("Compressed round trip with a real codec mismatch")
	}
}

func TestEncryptedXORRoundTrip(t *testing.T) {
	e := &Encrypted{Base: RawMessage{}}
	plain := []byte("secret-ish")
	b, ok := e.Encode(plain)
	if !ok {
		t.Fatal("Encrypted.Encode failed")
	}
	if bytes.Equal(b, plain) {
		t.Fatal("encoded bytes should differ from the plaintext (XOR applied)")
	}
	var got interface{}
	if err := e.Dispatch(b, func(v interface{}) { got = v }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !bytes.Equal(got.([]byte), plain) {
		t.Fatal("Encrypted round trip mismatch")
	}
}

type failingCodecMessage struct{}

func (failingCodecMessage) Encode(v interface{}) ([]byte, bool) { return v.([]byte), true }
func (failingCodecMessage) Dispatch(b []byte, handler func(interface{})) error {
	return errors.New("boom")
}

func TestBatchMessageRoundTrip(t *testing.T) {
	bm := &BatchMessage{Base: RawMessage{}}
	items := []interface{}{[]byte("one"), []byte("two"), []byte("three")}
	b, ok := bm.Encode(items)
	if !ok {
		t.Fatal("BatchMessage.Encode failed")
	}
	var got [][]byte
	if err := bm.Dispatch(b, func(v interface{}) { got = append(got, v.([]byte)) }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 dispatched items, got %d", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if string(got[i]) != want {
			t.Fatalf("item %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestBatchMessagePropagatesItemError(t *testing.T) {
	bm := &BatchMessage{Base: failingCodecMessage{}}
	items := []interface{}{[]byte("x")}
	b, _ := bm.Encode(items)
	if err := bm.Dispatch(b, func(interface{}) {}); err == nil {
		t.Fatal("BatchMessage.Dispatch should propagate a base item's dispatch error")
	}
}
