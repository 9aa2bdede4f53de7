package frame

// MuxChunk is one write from the multiplexer: a run of TS packet bytes
// (always a multiple of TSPacketSize) and the matching per-packet PCR
// sidecar, handed to the mux-output smoother to regroup into exact
// BatchPackets-sized MuxedBatches.
type MuxChunk struct {
	Data []byte
	PCR  []int64
}
