package output

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
)

// rtpPayloadTypeMP2T is PT=33, MPEG2 Transport Stream, per RFC 3551.
const rtpPayloadTypeMP2T = 33

// RTPFramer prepends a 12-byte RTP header to each outgoing TS batch:
// version=2, PT=33, 16-bit wrapping sequence, 90kHz timestamp derived from
// the batch's first PCR, a fixed per-session random SSRC.
type RTPFramer struct {
	ssrc uint32
	seq  atomic.Uint32 // low 16 bits used; wraps naturally via uint16 cast
}

// NewRTPFramer allocates a random per-session SSRC: randomness, not host
// identity, is what's required. The SSRC is derived from a generated
// UUIDv4's random bits rather than a fresh crypto/rand read, the same
// generator the rest of the pack reaches for to mint session-unique IDs.
func NewRTPFramer() *RTPFramer {
	id := uuid.New()
	return &RTPFramer{ssrc: binary.BigEndian.Uint32(id[:4])}
}

// lastSeq returns the most recently assigned sequence number, for callers
// that need to correlate a framed packet with its ARQ cache key or FEC
// matrix slot after Frame has already consumed it.
func (f *RTPFramer) lastSeq() uint16 {
	return uint16(f.seq.Load())
}

// Frame wraps payload in an RTP packet whose timestamp is the 90kHz value
// derived from firstPCR (a 27MHz tick).
func (f *RTPFramer) Frame(payload []byte, firstPCR int64) ([]byte, error) {
	seq := uint16(f.seq.Add(1))
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    rtpPayloadTypeMP2T,
			SequenceNumber: seq,
			Timestamp:      uint32(firstPCR / 300), // 27MHz -> 90kHz
			SSRC:           f.ssrc,
		},
		Payload: payload,
	}
	return pkt.Marshal()
}
