package encoder

import (
	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// Audio is the per-output-stream worker for audio: it drains raw audio
// frames into a PCM FIFO, hands the codec exactly FrameSize() samples per
// call, and synthesizes PTS for each coded frame from the running sample
// count rather than from codec-reported timing.
type Audio struct {
	StreamID int
	codec    AudioEncoder

	fifo       [][]int32 // per-channel accumulation buffer
	numChans   int
	sampleRate int
	curPTS     clock.Ticks
	havePTS    bool

	log logging.Logger
}

// NewAudio builds an Audio worker around an already-opened codec.
func NewAudio(streamID int, codec AudioEncoder, params AudioParams) *Audio {
	fifo := make([][]int32, params.NumChannels)
	return &Audio{
		StreamID:   streamID,
		codec:      codec,
		fifo:       fifo,
		numChans:   params.NumChannels,
		sampleRate: params.SampleRate,
		log:        logging.For("encoder.audio"),
	}
}

// Run drains in, accumulating PCM until codec.FrameSize() samples are
// available per channel, encodes each chunk, and pushes the resulting
// Coded frame to out with a PTS synthesized as
// cur_pts += codec_frame_samples * 90000 / sample_rate.
func (a *Audio) Run(in *queue.Queue[*frame.Raw], out *queue.Queue[*frame.Coded]) {
	frameSize := a.codec.FrameSize()
	for {
		raw, ok := in.Pop()
		if !ok {
			return
		}
		if raw.Kind != frame.KindAudio {
			raw.Release()
			continue
		}

		if !a.havePTS {
			a.curPTS = raw.PTS
			a.havePTS = true
		}
		a.append(raw.Audio)
		raw.Release()

		for a.available() >= frameSize {
			chunk := a.take(frameSize)
			data, err := a.codec.Encode(chunk)
			if err != nil {
				a.log.Error("audio encode failed, dropping chunk", "err", err, "stream", a.StreamID)
				continue
			}

			coded := &frame.Coded{
				OutputStreamID: a.StreamID,
				IsVideo:        false,
				PTS:            a.curPTS,
				RealPTS:        a.curPTS,
				RealDTS:        a.curPTS,
				RandomAccess:   true,
				Data:           data,
			}
			out.Push(coded)

			a.curPTS += samplesDuration(frameSize, a.sampleRate)
		}
	}
}

func (a *Audio) append(in frame.Audio) {
	for ch := 0; ch < a.numChans; ch++ {
		if ch >= len(in.Data) {
			a.fifo[ch] = append(a.fifo[ch], make([]int32, in.NumSamples)...)
			continue
		}
		a.fifo[ch] = append(a.fifo[ch], in.Data[ch]...)
	}
}

func (a *Audio) available() int {
	if len(a.fifo) == 0 {
		return 0
	}
	return len(a.fifo[0])
}

func (a *Audio) take(n int) [][]int32 {
	out := make([][]int32, a.numChans)
	for ch := 0; ch < a.numChans; ch++ {
		out[ch] = append([]int32(nil), a.fifo[ch][:n]...)
		a.fifo[ch] = a.fifo[ch][n:]
	}
	return out
}

// samplesDuration converts a sample count at sampleRate into 27MHz ticks
// via the 90kHz intermediate.
func samplesDuration(samples, sampleRate int) clock.Ticks {
	if sampleRate == 0 {
		return 0
	}
	ninetyKHz := int64(samples) * 90000 / int64(sampleRate)
	return clock.FromNinetyKHz(ninetyKHz)
}
