// Package encoder implements the per-output encoder workers: a blocking
// codec wrapper that turns raw frames into coded frames with HRD-derived
// timing for video and sample-count-derived PTS for audio.
package encoder

import "github.com/openbroadcast/obe/frame"

// HRDTiming is the subset of an H.264-equivalent HRD model the codec
// reports per emitted access unit.
type HRDTiming struct {
	// CPBRemovalTime and DPBOutputTime are in seconds, matching the
	// codec-library contract's hrd.cpb_removal_time / hrd.dpb_output_time
	// naming.
	CPBRemovalTime float64
	DPBOutputTime  float64
	// CPBInitialArrival/CPBFinalArrival are also in seconds.
	CPBInitialArrival float64
	CPBFinalArrival   float64
	RandomAccess      bool
	Priority          bool
}

// VideoEncoderOutput is one encoded access unit plus its HRD timing.
type VideoEncoderOutput struct {
	Data []byte
	HRD  HRDTiming
}

// VideoEncoder is the blocking codec contract: blocking
// encode(raw_frame) -> []coded_frame with HRD timing for video.
// Parameters are passed once at Open and may be patched at runtime via
// UpdateParams.
type VideoEncoder interface {
	Open(params VideoParams) error
	Encode(pic frame.Picture) ([]VideoEncoderOutput, error)
	UpdateParams(params VideoParams) error
	// Ready reports whether the first parameter set is known (ready-state
	// reached, signaling is_ready), and if so the VBV parameters the
	// encoder-output smoother needs.
	Ready() (VBVParams, bool)
	Close() error
}

// VideoParams mirrors the codec-library contract's parameter list.
type VideoParams struct {
	VBVMaxBitrate int
	VBVBufferSize int
	IBitrate      int
	IKeyintMax    int
	Lookahead     int
	BFrames       int
	Threads       int
	Profile       string
	IntraRefresh  bool
	CSP           frame.ColorSpace
	TimebaseNum   int
	TimebaseDen   int
}

// VBVParams is the VBV model the encoder-output smoother reads once ready.
type VBVParams struct {
	BufferSize int // bits
	InitFill   int // bits
	MaxBitrate int // bits/sec
}

// AudioEncoder is the audio-side codec contract: PCM in at codec frame
// granularity, coded frames out.
type AudioEncoder interface {
	Open(params AudioParams) error
	// FrameSize is the codec's fixed PCM samples-per-frame.
	FrameSize() int
	Encode(samples [][]int32) ([]byte, error)
	Close() error
}

// AudioParams configures an AudioEncoder.
type AudioParams struct {
	SampleRate  int
	NumChannels int
	Bitrate     int
}
