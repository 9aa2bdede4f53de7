// Package smoother implements the two anchor-and-sleep pacing workers:
// the encoder-output smoother (keyed on DTS, sized by VBV) and the
// mux-output smoother (keyed on PCR delta, sized the same way).
package smoother

import (
	"context"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/encoder"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// ReadyVideo is the subset of encoder.Video the smoother needs: the VBV
// parameters once the codec reaches ready-state.
type ReadyVideo interface {
	Ready() (encoder.VBVParams, bool)
}

// EncoderOutput is the single worker between a video encoder and the mux
// queue: it absorbs end-of-GOP bursts so the muxer sees a smooth DTS
// cadence, pacing release in wall-clock time anchored to the first DTS.
type EncoderOutput struct {
	Video ReadyVideo
	Bus   *clock.Bus
	Drop  *DropSignal

	log logging.Logger

	vbvSize  clock.Ticks // temporal_vbv_size, derived from VBV buffer size/bitrate once ready
	buf      []*frame.Coded
	anchored bool
	startWall  clock.Ticks // start_mpeg_time, read from the clock bus
	startDTS   clock.Ticks // start_dts_time, the first buffered frame's real_dts
}

// NewEncoderOutput builds a smoother for one video output.
func NewEncoderOutput(video ReadyVideo, bus *clock.Bus, drop *DropSignal) *EncoderOutput {
	return &EncoderOutput{Video: video, Bus: bus, Drop: drop, log: logging.For("smoother.encoder_output")}
}

// Run reads coded frames from in and forwards each to out once its pacing
// deadline has arrived.
func (s *EncoderOutput) Run(ctx context.Context, in, out *queue.Queue[*frame.Coded]) {
	for {
		c, ok := in.Pop()
		if !ok {
			return
		}

		if s.Drop != nil && s.Drop.Consume() {
			s.flush(out)
			s.anchored = false
		}

		if s.vbvSize == 0 {
			if vbv, ready := s.Video.Ready(); ready {
				s.vbvSize = vbvToTicks(vbv)
			}
		}

		s.buf = append(s.buf, c)

		if !s.anchored {
			if s.bufferComplete() {
				s.arm()
			} else {
				continue
			}
		}

		s.drainTo(ctx, out)
	}
}

// bufferComplete is true once the span between the earliest and latest
// queued frame's real_dts reaches temporal_vbv_size.
func (s *EncoderOutput) bufferComplete() bool {
	if len(s.buf) == 0 || s.vbvSize == 0 {
		return false
	}
	span := s.buf[len(s.buf)-1].RealDTS - s.buf[0].RealDTS
	return span >= s.vbvSize
}

// arm establishes the anchor on the first complete event.
func (s *EncoderOutput) arm() {
	now, _ := s.Bus.Now()
	s.startWall = now
	s.startDTS = s.buf[0].RealDTS
	s.anchored = true
}

// drainTo forwards every buffered frame, sleeping until each one's pacing
// deadline per the anchor established in arm. On cancellation it releases
// every frame still held in s.buf rather than abandoning them.
func (s *EncoderOutput) drainTo(ctx context.Context, out *queue.Queue[*frame.Coded]) {
	for len(s.buf) > 0 {
		c := s.buf[0]
		deadline := s.startWall + (c.RealDTS - s.startDTS)
		if err := s.Bus.SleepUntil(ctx, deadline); err != nil {
			s.flush(out)
			return
		}
		s.buf = s.buf[1:]
		out.Push(c)
	}
}

// flush releases every currently buffered frame on a drop signal; the
// muxer/mux-smoother discard stale state independently, so these frames
// are simply dropped rather than force-forwarded.
func (s *EncoderOutput) flush(out *queue.Queue[*frame.Coded]) {
	for _, c := range s.buf {
		c.Release()
	}
	s.buf = nil
}

// vbvToTicks converts a VBV buffer size in bits at a given max bitrate into
// a 27 MHz span: buffer_size_bits / max_bitrate_bps seconds of video.
func vbvToTicks(vbv encoder.VBVParams) clock.Ticks {
	if vbv.MaxBitrate <= 0 {
		return 0
	}
	seconds := float64(vbv.BufferSize) / float64(vbv.MaxBitrate)
	return clock.FromDuration(durationFromSeconds(seconds))
}
