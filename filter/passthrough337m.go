package filter

import (
	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/frame"
)

// SMPTE 337M sync words (16-bit, as carried inside PCM).
const (
	sync337MWordA = 0xF872
	sync337MWordB = 0x4E1F
)

// dataType337M values we recognize; only AC-3 passthrough is supported,
// the only currently handled case.
const dataType337MAC3 = 0x01

// Passthrough337M implements S302M/337M passthrough: when an output is
// tagged PASSTHROUGH for a payload wrapped in SMPTE 337M, scan the
// interleaved 16-bit PCM words for the 337M sync-word pair, extract the
// encapsulated compressed burst, and accumulate frames_per_pes bursts
// into one mux-queue coded frame.
type Passthrough337M struct {
	FramesPerPES int
	SampleRate   int

	pending    [][]byte
	startPTS   clock.Ticks
	startOffset int
}

// Feed scans one audio window's first channel pair for a 337M burst. When
// FramesPerPES bursts have accumulated, it returns a ready Coded frame;
// otherwise it returns (nil, false) and keeps accumulating.
func (p *Passthrough337M) Feed(windowPTS clock.Ticks, samples []int32, sampleOffsetInWindow int) (*frame.Coded, bool) {
	burst, ok := scan337MBurst(samples)
	if !ok {
		return nil, false
	}
	if len(p.pending) == 0 {
		p.startPTS = interpolatePTS(windowPTS, sampleOffsetInWindow, p.SampleRate)
	}
	p.pending = append(p.pending, burst)
	if len(p.pending) < p.FramesPerPES {
		return nil, false
	}

	total := 0
	for _, b := range p.pending {
		total += len(b)
	}
	data := make([]byte, 0, total)
	for _, b := range p.pending {
		data = append(data, b...)
	}
	p.pending = nil

	return &frame.Coded{
		IsVideo: false,
		PTS:     p.startPTS,
		RealPTS: p.startPTS,
		RealDTS: p.startPTS,
		Data:    data,
	}, true
}

// interpolatePTS derives a PTS for a sample found sampleOffset samples
// into a window whose first sample is at windowPTS, interpolated from
// the sample offset within the audio window.
func interpolatePTS(windowPTS clock.Ticks, sampleOffset, sampleRate int) clock.Ticks {
	if sampleRate == 0 {
		return windowPTS
	}
	delta := clock.Ticks(int64(sampleOffset) * int64(clock.Hz) / int64(sampleRate))
	return windowPTS + delta
}

// scan337MBurst looks for the 0xF872 0x4E1F sync-word pair across
// interleaved 16-bit words (here: the low 16 bits of each int32 sample,
// matching 337M's carriage inside 16-bit PCM words) and, if found, returns
// the AC-3 burst payload that follows the burst-info word.
func scan337MBurst(samples []int32) ([]byte, bool) {
	words := make([]uint16, len(samples))
	for i, s := range samples {
		words[i] = uint16(s)
	}
	for i := 0; i+3 < len(words); i++ {
		if words[i] != sync337MWordA || words[i+1] != sync337MWordB {
			continue
		}
		burstInfo := words[i+2]
		dataType := burstInfo & 0x1F
		if dataType != dataType337MAC3 {
			continue
		}
		lengthWord := words[i+3] // length in bits per 337M
		lengthBytes := int(lengthWord+7) / 8
		start := i + 4
		end := start + lengthBytes/2
		if end > len(words) {
			end = len(words)
		}
		out := make([]byte, 0, lengthBytes)
		for _, w := range words[start:end] {
			out = append(out, byte(w>>8), byte(w))
		}
		return out, true
	}
	return nil, false
}
