// Package mux implements the multiplexer: the single worker that selects
// coded frames across streams by rescaled DTS, drives the tslib.Muxer
// contract, and enqueues muxed chunks for the mux-output smoother. It
// also owns the SCTE-35 TCP ingest path.
package mux

import (
	"sort"
	"sync/atomic"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/mux/tslib"
	"github.com/openbroadcast/obe/queue"
)

// streamFormatTable maps a configured codec tag to the MPEG-TS
// stream_type byte the TS library needs.
var streamFormatTable = map[config.StreamFormat]byte{
	config.FormatAVC:        0x1B, // H.264
	config.FormatMP2:        0x03, // MPEG-1 audio (layer II)
	config.FormatAC3:        0x81, // registered AC-3 private stream type
	config.FormatEAC3:       0x87,
	config.FormatAAC:        0x0F, // ADTS AAC
	config.FormatAACLATM:    0x11, // LOAS/LATM AAC
	config.FormatHEAAC:      0x0F,
	config.FormatS302M:      0x83,
	config.FormatDVBVBI:     0x06, // private, PES with DVB VBI descriptor
	config.FormatDVBTeletxt: 0x06,
}

// Multiplexer is the single multiplexer worker.
type Multiplexer struct {
	TS  tslib.Muxer
	Bus *clock.Bus
	log logging.Logger

	program config.Program
	streams map[int]config.StreamDescriptor // by PID

	firstVideoPTS     int64
	firstVideoRealPTS int64
	anchored          bool

	pendingRateUpdate atomic.Int64 // 0 = none pending, else new muxrate+1
}

// NewMultiplexer configures ts per program and returns a ready Multiplexer.
func NewMultiplexer(ts tslib.Muxer, bus *clock.Bus, program config.Program) (*Multiplexer, error) {
	m := &Multiplexer{TS: ts, Bus: bus, program: program, log: logging.For("mux")}
	m.streams = make(map[int]config.StreamDescriptor, len(program.Streams))

	cfg := tslib.ProgramConfig{
		ProgramNumber: 1,
		PMTPID:        program.PMTPID,
		PCRPID:        program.PCRPID,
		PATPeriodMS:   program.PATPeriodMS,
		PCRPeriodMS:   100,
		MuxRateBps:    program.MuxRateBps,
	}
	for _, s := range program.Streams {
		m.streams[int(s.PID)] = s
		cfg.Streams = append(cfg.Streams, tslib.StreamConfig{
			PID:            s.PID,
			IsVideo:        s.Type == config.StreamVideo,
			StreamType:     streamFormatTable[s.Format],
			FrameSizeTicks: audioFrameSizeTicks(s),
		})
	}
	if err := ts.Configure(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// audioFrameSizeTicks computes samples-per-frame * frames-per-PES /
// sample-rate in 90 kHz ticks. This is only needed for informational
// stream configuration; encoders stamp their own PTS independently.
func audioFrameSizeTicks(s config.StreamDescriptor) int {
	switch s.Format {
	case config.FormatMP2:
		return 1152 * 90000 / 48000
	case config.FormatAAC, config.FormatAACLATM, config.FormatHEAAC:
		return 1024 * 90000 / 48000
	case config.FormatAC3, config.FormatEAC3:
		return 1536 * 90000 / 48000
	default:
		return 0
	}
}

// RequestMuxRateUpdate implements live bitrate reconfiguration: on a flag
// set externally, re-arm the TS library with the updated muxrate.
func (m *Multiplexer) RequestMuxRateUpdate(bps int) {
	m.pendingRateUpdate.Store(int64(bps) + 1)
}

// Run drains in (the unbounded mux input queue carrying coded frames from
// every encoder), selects batches by rescaled DTS, and pushes MuxChunks to
// out for the mux-output smoother.
func (m *Multiplexer) Run(in *queue.Queue[*frame.Coded], pidOf func(streamID int) uint16, out *queue.Queue[*frame.MuxChunk]) {
	var held []*frame.Coded

	for {
		c, ok := in.Pop()
		if !ok {
			return
		}
		held = append(held, c)

		if rate := m.pendingRateUpdate.Swap(0); rate > 0 {
			if err := m.TS.UpdateMuxRate(int(rate - 1)); err != nil {
				m.log.Warn("mux rate update failed", "err", err)
			}
		}

		videoPID := m.program.VideoPID()

		if !m.anchored {
			if !c.IsVideo {
				pid := pidOf(c.OutputStreamID)
				if pid != videoPID {
					// Not the anchor stream; hold until video arrives.
					continue
				}
			}
			if c.IsVideo {
				m.firstVideoPTS = int64(c.PTS)
				m.firstVideoRealPTS = int64(c.RealPTS)
				m.anchored = true
			} else {
				continue
			}
		}

		var videoDTS int64
		haveVideoDTS := false
		for _, h := range held {
			pid := pidOf(h.OutputStreamID)
			if pid == videoPID && h.IsVideo {
				videoDTS = int64(h.RealDTS)
				haveVideoDTS = true
			}
		}
		if !haveVideoDTS {
			continue
		}

		var batch []tslib.Frame
		var kept []*frame.Coded
		for _, h := range held {
			pid := pidOf(h.OutputStreamID)
			rescaledPTS := int64(h.PTS)
			rescaledDTS := int64(h.RealDTS)
			if !h.IsVideo {
				if rescaledPTS < m.firstVideoPTS {
					// Too-early non-video frame, discarded before anchoring;
					// it is not kept, so the release loop below frees it.
					continue
				}
				rescaledPTS = rescaledPTS - m.firstVideoPTS + m.firstVideoRealPTS
				rescaledDTS = rescaledPTS
			}
			if rescaledDTS <= videoDTS {
				batch = append(batch, tslib.Frame{
					PID:               pid,
					PTS:               clock.Ticks(rescaledPTS).ToNinetyKHz(),
					DTS:               clock.Ticks(rescaledDTS).ToNinetyKHz(),
					CPBInitialArrival: h.CPBInitialArrival.ToNinetyKHz(),
					CPBFinalArrival:   h.CPBFinalArrival.ToNinetyKHz(),
					RandomAccess:      h.RandomAccess,
					Priority:          h.Priority,
					Data:              h.Data,
				})
			} else {
				kept = append(kept, h)
			}
		}
		if len(batch) == 0 {
			continue
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].DTS < batch[j].DTS })

		data, pcrs, err := m.TS.WriteFrames(batch)
		if err != nil {
			m.log.Error("mux write failed", "err", err)
		} else {
			out.Push(&frame.MuxChunk{Data: data, PCR: pcrs})
		}

		for _, h := range held {
			keepIt := false
			for _, k := range kept {
				if k == h {
					keepIt = true
					break
				}
			}
			if !keepIt {
				h.Release()
			}
		}
		held = kept
	}
}
