package frame

import "sync/atomic"

const (
	// TSPacketSize is one MPEG-TS packet.
	TSPacketSize = 188
	// BatchPackets is the canonical batch size: 7 TS packets, matching the
	// RTP-over-UDP payload size.
	BatchPackets = 7
	// TSPacketsSize is TS_PACKETS_SIZE = 7 * 188 = 1316.
	TSPacketsSize = BatchPackets * TSPacketSize
)

// MuxedBatch is muxed_data: a fixed-size run of N transport packets plus
// N PCR sidecar values, one per packet.
type MuxedBatch struct {
	Payload [TSPacketsSize]byte // BatchPackets * 188 bytes, always full
	PCR     [BatchPackets]int64 // 27 MHz PCR per packet, monotonically non-decreasing
}

// BufRef is buf_ref: a reference-counted carrier for a MuxedBatch. Each
// downstream output holds an independent reference; the underlying
// payload is only actually freed (returned to the pool, if any) after the
// last reference drops. This is a one-level simplification of two-level
// ownership over AVBufferPool: one reference type wrapping one payload.
type BufRef struct {
	batch   *MuxedBatch
	count   atomic.Int32
	release Release
}

// NewBufRef wraps batch with an initial reference count of 1.
func NewBufRef(batch *MuxedBatch, release Release) *BufRef {
	r := &BufRef{batch: batch, release: release}
	r.count.Store(1)
	return r
}

// Batch returns the wrapped MuxedBatch. Valid only while the caller holds a
// reference (i.e. between Clone/NewBufRef and the matching Release).
func (r *BufRef) Batch() *MuxedBatch { return r.batch }

// Clone increments the reference count and returns the same BufRef, for
// handing an independent reference to one more output subscriber — one
// reference broadcast per output.
func (r *BufRef) Clone() *BufRef {
	r.count.Add(1)
	return r
}

// Release drops one reference. When the count reaches zero the backing
// MuxedBatch's release discipline runs exactly once: after pipeline
// drain, every allocated buf_ref must have been released exactly once.
func (r *BufRef) Release() {
	if r.count.Add(-1) == 0 {
		r.release.Do()
	}
}

// RefCount reports the current reference count; exposed for tests.
func (r *BufRef) RefCount() int32 { return r.count.Load() }
