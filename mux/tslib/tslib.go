// Package tslib is the contract boundary for an MPEG-TS library that is
// assumed already provided: it takes frame batches with PID/PTS/DTS/CPB
// timing and returns packed TS bytes plus a per-packet PCR sidecar. The
// multiplexer (package mux) is the only caller; this package defines the
// interface plus one reference implementation adequate to drive the rest
// of the pipeline under test.
package tslib

// StreamConfig is the per-stream configuration the muxer hands the TS
// library once at Configure time.
type StreamConfig struct {
	PID        uint16
	IsVideo    bool
	StreamType byte // MPEG-TS stream_type / stream_format tag
	// FrameSizeTicks is the 90kHz frame size for audio streams, computed by
	// the caller as samples-per-frame * frames-per-PES / sample-rate;
	// unused for video.
	FrameSizeTicks int
}

// Frame is one coded frame handed to WriteFrames. DTS/PTS are 90 kHz.
type Frame struct {
	PID               uint16
	PTS, DTS          int64
	CPBInitialArrival int64
	CPBFinalArrival   int64
	RandomAccess      bool
	Priority          bool
	Data              []byte
}

// Muxer is the MPEG-TS library contract: takes (frame[], count) with
// PID, PTS/DTS in 90 kHz, CPB times, random-access flag, priority, and
// returns (bytes, length, pcr_list). Muxrate is set at configure time
// and can be updated.
type Muxer interface {
	// Configure (re-)configures the program: PMT PID, PCR PID (defaults to
	// the video PID), PAT/PCR periods, per-stream descriptors, and initial
	// muxrate.
	Configure(cfg ProgramConfig) error

	// WriteFrames muxes one batch of coded frames (already selected by the
	// caller per the DTS-ordering rule) into TS packets, returning the
	// packed bytes and one PCR value per emitted packet.
	WriteFrames(frames []Frame) (data []byte, pcrPerPacket []int64, err error)

	// UpdateMuxRate re-arms the library with a new mux rate, supporting
	// live bitrate reconfiguration.
	UpdateMuxRate(bps int) error
}

// ProgramConfig is the one-time (or re-armed) program configuration.
type ProgramConfig struct {
	ProgramNumber int
	PMTPID        uint16
	PCRPID        uint16
	PATPeriodMS   int
	PCRPeriodMS   int
	MuxRateBps    int
	Streams       []StreamConfig
}
