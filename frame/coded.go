package frame

import "github.com/openbroadcast/obe/clock"

// Coded is coded_frame: the output of an encoder.
type Coded struct {
	OutputStreamID int
	IsVideo        bool

	// PTS is the wall PTS carried over from the input frame.
	PTS clock.Ticks

	// RealPTS/RealDTS are HRD-derived (video) or mux-rescaled (non-video),
	// always in the 27 MHz domain. Invariant: RealDTS <= RealPTS.
	RealPTS clock.Ticks
	RealDTS clock.Ticks

	// CPBInitialArrival/CPBFinalArrival are the HRD CPB arrival times the
	// muxer needs; invariant: CPBInitialArrival <= CPBFinalArrival <= RealDTS.
	CPBInitialArrival clock.Ticks
	CPBFinalArrival   clock.Ticks

	RandomAccess bool // IDR / keyframe
	Priority     bool // I-slice

	// Duration is meaningful for non-video frames only (audio/subtitle).
	Duration clock.Ticks

	Data []byte

	// SCTE35Opaque carries an optional SCTE-35 splice command payload;
	// nil when absent.
	SCTE35Opaque []byte

	release Release
}

// Release gives back the coded frame's backing buffer.
func (c *Coded) Release() {
	c.release.Do()
}

// SetRelease installs the release discipline; used by encoder workers that
// allocate Coded frames from a pool.
func (c *Coded) SetRelease(r Release) { c.release = r }

// Valid checks the per-video-frame invariants: RealDTS <= RealPTS, and
// CPBInitialArrival <= CPBFinalArrival <= RealDTS. Non-video frames are
// always valid under this check.
func (c *Coded) Valid() bool {
	if !c.IsVideo {
		return true
	}
	if c.RealDTS > c.RealPTS {
		return false
	}
	if c.CPBInitialArrival > c.CPBFinalArrival {
		return false
	}
	if c.CPBFinalArrival > c.RealDTS {
		return false
	}
	return true
}
