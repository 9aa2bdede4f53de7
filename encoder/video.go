package encoder

import (
	"sync"
	"sync/atomic"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// Video is the per-output-stream worker for video: one per video output,
// wrapping a codec-specific VideoEncoder.
type Video struct {
	StreamID int
	codec    VideoEncoder

	readyMu sync.Mutex
	ready   atomic.Bool
	vbv     VBVParams

	log logging.Logger
}

// NewVideo builds a Video worker around an already-opened codec.
func NewVideo(streamID int, codec VideoEncoder) *Video {
	return &Video{StreamID: streamID, codec: codec, log: logging.For("encoder.video")}
}

// Ready reports whether the codec has reached ready-state, and the VBV
// parameters the smoother needs once it has.
func (v *Video) Ready() (VBVParams, bool) {
	if !v.ready.Load() {
		return VBVParams{}, false
	}
	v.readyMu.Lock()
	defer v.readyMu.Unlock()
	return v.vbv, true
}

// Run drains in, encodes every picture, and pushes resulting Coded frames
// to out. Codec errors are logged and the offending frame dropped as a
// transient per-frame failure.
func (v *Video) Run(in *queue.Queue[*frame.Raw], out *queue.Queue[*frame.Coded]) {
	for {
		raw, ok := in.Pop()
		if !ok {
			return
		}
		if raw.Kind != frame.KindPicture {
			raw.Release()
			continue
		}

		outputs, err := v.codec.Encode(raw.Picture)
		if err != nil {
			v.log.Error("video encode failed, dropping frame", "err", err, "stream", v.StreamID)
			raw.Release()
			continue
		}

		if vbv, ok := v.codec.Ready(); ok && !v.ready.Load() {
			v.readyMu.Lock()
			v.vbv = vbv
			v.readyMu.Unlock()
			v.ready.Store(true)
		}

		for _, o := range outputs {
			coded := &frame.Coded{
				OutputStreamID:    v.StreamID,
				IsVideo:           true,
				PTS:               raw.PTS,
				RealDTS:           secondsToTicks(o.HRD.CPBRemovalTime),
				RealPTS:           secondsToTicks(o.HRD.DPBOutputTime),
				CPBInitialArrival: secondsToTicks(o.HRD.CPBInitialArrival),
				CPBFinalArrival:   secondsToTicks(o.HRD.CPBFinalArrival),
				RandomAccess:      o.HRD.RandomAccess,
				Priority:          o.HRD.Priority,
				Data:              o.Data,
			}
			out.Push(coded)
		}
		raw.Release()
	}
}

func secondsToTicks(s float64) clock.Ticks {
	return clock.Ticks(s * float64(clock.Hz))
}
