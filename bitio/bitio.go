// Package bitio provides explicit byte-aligned load/store helpers for the
// fixed-layout wire headers in this module (COP3 FEC, LDPC repair, RTCP XR
// blocks). Spec §9 calls out the source's type-punning unions
// (bitstream.h) as a C-ism to drop; this package is the replacement: no
// unaligned native reads, every field access is an explicit shift-and-mask.
package bitio

// PutUint16BE stores v big-endian into b[0:2].
func PutUint16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// Uint16BE loads a big-endian uint16 from b[0:2].
func Uint16BE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutUint24BE stores the low 24 bits of v big-endian into b[0:3].
func PutUint24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Uint24BE loads a big-endian 24-bit value from b[0:3].
func Uint24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutUint32BE stores v big-endian into b[0:4].
func PutUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// Uint32BE loads a big-endian uint32 from b[0:4].
func Uint32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutUint64BE stores v big-endian into b[0:8].
func PutUint64BE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(56-8*i))
	}
}

// Uint64BE loads a big-endian uint64 from b[0:8].
func Uint64BE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
