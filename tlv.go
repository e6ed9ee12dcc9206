package framewire

// TLV encoding (spec.md §3.2, §4.2): a linear stream of
// type(1) | length(1) | value(length) records. Only the short (single-byte
// length) form is implemented here; the extended form (length==0xFF
// followed by a little-endian uint16) is reserved for higher layers per
// spec.md §6.4 and is not produced or consumed by this decoder.

// TLVAdd appends one record to buf[*offset:], returning NOMEM if it
// would not fit and INVALID if value is too long to encode in the 1-byte
// length form.
func TLVAdd(buf []byte, offset *int, typ byte, value []byte) Code {
	if len(value) > 0xFF {
		return INVALID
	}
	need := 2 + len(value)
	if *offset+need > len(buf) {
		return NOMEM
	}
	buf[*offset] = typ
	buf[*offset+1] = byte(len(value))
	copy(buf[*offset+2:*offset+2+len(value)], value)
	*offset += need
	return OK
}

// TLVFind scans buf[:n] linearly for the first record whose type matches
// typ, bounds-checking each record and stopping at the first truncated
// entry (spec.md §3.2, §4.2). It returns the record's value span and true,
// or nil, false if absent.
func TLVFind(buf []byte, n int, typ byte) ([]byte, bool) {
	if n > len(buf) {
		n = len(buf)
	}
	off := 0
	for off+2 <= n {
		t := buf[off]
		l := int(buf[off+1])
		valStart := off + 2
		valEnd := valStart + l
		if valEnd > n {
			// truncated record: stop scanning (spec.md §4.2).
			return nil, false
		}
		if t == typ {
			return buf[valStart:valEnd], true
		}
		off = valEnd
	}
	return nil, false
}
