package output

import "fmt"

// adduHeaderSize/adduFooterSize are the ADU framing sizes: 3-byte ADU
// header, RTP packet, 6-byte ADU footer.
const (
	adduHeaderSize = 3
	adduFooterSize = 6
)

// LDPCBlock accumulates k source ADUs and, on completion, produces r
// repair symbols using the RFC 5170 §I.2 LDPC-Staircase parity matrix. No
// pack library implements RFC 5170, so the parity construction here is a
// small self-contained routine.
type LDPCBlock struct {
	K, R int
	adus [][]byte // framed ADUs, appended as they arrive
	seq  int
}

// NewLDPCBlock starts a block targeting k source symbols and r repair
// symbols.
func NewLDPCBlock(k, r int) *LDPCBlock {
	return &LDPCBlock{K: k, R: r}
}

// AddADU frames rtpPacket as one source symbol and reports whether the
// block is now complete.
func (b *LDPCBlock) AddADU(rtpPacket []byte) bool {
	framed := frameADU(rtpPacket, b.seq, len(b.adus))
	b.seq++
	b.adus = append(b.adus, framed)
	return len(b.adus) >= b.K
}

// frameADU wraps payload with a 3-byte header (sequence, flags) and a
// 6-byte footer (length, block index).
func frameADU(payload []byte, seq, indexInBlock int) []byte {
	out := make([]byte, 0, adduHeaderSize+len(payload)+adduFooterSize)
	out = append(out, byte(seq>>8), byte(seq), 0x00)
	out = append(out, payload...)
	length := len(payload)
	out = append(out,
		byte(length>>8), byte(length),
		byte(indexInBlock>>8), byte(indexInBlock),
		0x00, 0x00,
	)
	return out
}

// symbolSize returns the equal length every symbol in the block must pad
// to, per RFC 5170's fixed-length symbol requirement.
func (b *LDPCBlock) symbolSize() int {
	max := 0
	for _, a := range b.adus {
		if len(a) > max {
			max = len(a)
		}
	}
	return max
}

// RepairSymbols builds the R repair symbols once the block has K source
// ADUs, per RFC 5170 §I.2's staircase parity check matrix: repair symbol i
// is the XOR of every source symbol j where (j mod R) == i, folded with
// the staircase's carry from repair symbol i-1.
func (b *LDPCBlock) RepairSymbols() ([][]byte, error) {
	if len(b.adus) < b.K {
		return nil, fmt.Errorf("ldpc: block incomplete: have %d of %d", len(b.adus), b.K)
	}
	size := b.symbolSize()
	padded := make([][]byte, len(b.adus))
	for i, a := range b.adus {
		p := make([]byte, size)
		copy(p, a)
		padded[i] = p
	}

	repair := make([][]byte, b.R)
	for i := range repair {
		repair[i] = make([]byte, size)
	}
	for j, sym := range padded {
		i := j % b.R
		xorInto(repair[i], sym)
	}
	// Staircase structure: each repair symbol after the first also
	// incorporates the previous repair symbol, per RFC 5170's lower
	// bidiagonal parity submatrix.
	for i := 1; i < b.R; i++ {
		xorInto(repair[i], repair[i-1])
	}
	return repair, nil
}

func xorInto(dst, src []byte) {
	for i := range src {
		dst[i] ^= src[i]
	}
}

// InterleaveStride is k/r (at least 1; k when r is 0): the number of source
// packets between consecutive repair packets in an interleaved send order.
// The fan-out Worker does not interleave: it sends every repair symbol
// back-to-back once a block completes.
func (b *LDPCBlock) InterleaveStride() int {
	if b.R == 0 {
		return b.K
	}
	stride := b.K / b.R
	if stride < 1 {
		return 1
	}
	return stride
}
