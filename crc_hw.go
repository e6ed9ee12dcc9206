package framewire

import "golang.org/x/sys/cpu"

// useHWCRC32 gates the crc32 dispatch in crc.go. It is off by default;
// Config.Apply flips it on when Config.UseHWCRC or Config.UseSSE42CRC is set
// and the host actually has the feature.
var useHWCRC32 = false

// hasSSE42 reports whether the host CPU advertises the SSE4.2 instruction
// set, used to populate Config.UseSSE42CRC's "auto" default (spec.md §6.5).
func hasSSE42() bool {
	return cpu.X86.HasSSE42
}

// SetHWCRC32 toggles the hardware CRC-32 dispatch path at runtime. Safe to
// call even when the feature is unavailable: crc32HW degrades to the table
// implementation rather than silently computing a different polynomial.
func SetHWCRC32(enabled bool) {
	useHWCRC32 = enabled && hasSSE42()
}

// crc32HW is the "alternate implementation" spec.md §4.1 permits: on
// x86-64 with SSE4.2 a hardware instruction may be used for 8-/4-/1-byte
// chunks "provided it produces the same result as the table version for
// all inputs". The x86 CRC32 instruction implements the Castagnoli
// polynomial (0x1EDC6F41), not the IEEE polynomial (0x04C11DB7) this wire
// format requires (spec.md §9 "Open questions": the two disagree for any
// non-empty input). There is no hardware instruction computing the IEEE
// polynomial on commodity x86-64, so crc32HW deliberately resolves to the
// identical table path rather than re-tabulating around the wrong
// polynomial — this is the "must not swap in the Castagnoli instruction"
// requirement from spec.md, not an unimplemented optimisation.
func crc32HW(data []byte) uint32 {
	return crc32Table32(data)
}
