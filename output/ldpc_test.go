package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLDPCBlockSignalsCompleteAtK(t *testing.T) {
	b := NewLDPCBlock(3, 1)
	assert.False(t, b.AddADU([]byte{1, 2}))
	assert.False(t, b.AddADU([]byte{3, 4}))
	assert.True(t, b.AddADU([]byte{5, 6}))
}

func TestLDPCRepairSymbolsErrorsBeforeComplete(t *testing.T) {
	b := NewLDPCBlock(2, 1)
	b.AddADU([]byte{1})
	_, err := b.RepairSymbols()
	assert.Error(t, err)
}

func TestLDPCSingleRepairRecoversAnySourceLoss(t *testing.T) {
	// With R=1 the single repair symbol is the XOR of every (padded) source
	// symbol, so any one missing source symbol is recoverable by XORing the
	// repair symbol against the rest.
	k := 5
	b := NewLDPCBlock(k, 1)
	sources := [][]byte{
		{0x01, 0x02, 0x03},
		{0x04, 0x05},
		{0xFF, 0xEE, 0xDD, 0xCC},
		{0x10},
		{0x20, 0x21},
	}
	for _, s := range sources {
		b.AddADU(s)
	}
	repair, err := b.RepairSymbols()
	require.NoError(t, err)
	require.Len(t, repair, 1)

	size := b.symbolSize()
	for lost := 0; lost < k; lost++ {
		recovered := make([]byte, size)
		copy(recovered, repair[0])
		for j, a := range b.adus {
			if j == lost {
				continue
			}
			for i := range a {
				recovered[i] ^= a[i]
			}
		}
		want := make([]byte, size)
		copy(want, b.adus[lost])
		assert.Equal(t, want, recovered, "recovery failed for lost index %d", lost)
	}
}

func TestLDPCInterleaveStride(t *testing.T) {
	cases := []struct {
		k, r, want int
	}{
		{10, 5, 2},
		{10, 0, 10},
		{1, 5, 1},
		{7, 2, 3},
	}
	for _, c := range cases {
		b := NewLDPCBlock(c.k, c.r)
		assert.Equal(t, c.want, b.InterleaveStride())
	}
}

// TestLDPCADUFramingRoundTrip is the property test covering the 3-byte
// header / 6-byte footer ADU framing: the footer's encoded length and
// block index always match what was passed in.
func TestLDPCADUFramingRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(rt, "payload")
		seq := rapid.IntRange(0, 65535).Draw(rt, "seq")
		idx := rapid.IntRange(0, 65535).Draw(rt, "idx")

		framed := frameADU(payload, seq, idx)
		if len(framed) != adduHeaderSize+len(payload)+adduFooterSize {
			rt.Fatalf("framed length mismatch: got %d want %d", len(framed), adduHeaderSize+len(payload)+adduFooterSize)
		}

		footer := framed[len(framed)-adduFooterSize:]
		gotLen := int(footer[0])<<8 | int(footer[1])
		gotIdx := int(footer[2])<<8 | int(footer[3])
		if gotLen != len(payload)&0xFFFF {
			rt.Fatalf("footer length mismatch: got %d want %d", gotLen, len(payload)&0xFFFF)
		}
		if gotIdx != idx&0xFFFF {
			rt.Fatalf("footer index mismatch: got %d want %d", gotIdx, idx&0xFFFF)
		}
	})
}
