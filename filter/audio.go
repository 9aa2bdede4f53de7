package filter

import "github.com/openbroadcast/obe/frame"

// AudioSplitter splits an interleaved multi-channel input frame per
// output channel map, converting to the encoder-requested sample format
// with a libswresample-equivalent path. Every raw_frame audio payload is
// already planar int32, so "convert" here is limited to channel
// selection/remapping — the bit-exact resampling path itself belongs to
// the codec's own accepted format and is out of scope for the core.
type AudioSplitter struct {
	// ChannelMap selects, for each output channel index, the source plane
	// index to pull from (e.g. an 8-SDI-pair layout selecting a stereo
	// pair out of 16 input channels).
	ChannelMap []int
}

// Split returns a new Audio payload containing only the mapped channels,
// in ChannelMap order.
func (s *AudioSplitter) Split(in frame.Audio) frame.Audio {
	out := frame.Audio{
		SampleFmt:   in.SampleFmt,
		NumChannels: len(s.ChannelMap),
		NumSamples:  in.NumSamples,
		SampleRate:  in.SampleRate,
		Data:        make([][]int32, len(s.ChannelMap)),
	}
	for i, ch := range s.ChannelMap {
		if ch < 0 || ch >= len(in.Data) {
			out.Data[i] = make([]int32, in.NumSamples)
			continue
		}
		out.Data[i] = in.Data[ch]
	}
	return out
}
