package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/mux/tslib"
	"github.com/openbroadcast/obe/queue"
)

type fakeMuxer struct {
	cfg       tslib.ProgramConfig
	writes    [][]tslib.Frame
	rateCalls []int
}

func (f *fakeMuxer) Configure(cfg tslib.ProgramConfig) error {
	f.cfg = cfg
	return nil
}

func (f *fakeMuxer) WriteFrames(frames []tslib.Frame) ([]byte, []int64, error) {
	cp := make([]tslib.Frame, len(frames))
	copy(cp, frames)
	f.writes = append(f.writes, cp)
	return []byte("ts-bytes"), []int64{1, 2}, nil
}

func (f *fakeMuxer) UpdateMuxRate(bps int) error {
	f.rateCalls = append(f.rateCalls, bps)
	return nil
}

func testProgram() config.Program {
	return config.Program{
		PMTPID:     0x1000,
		PATPeriodMS: 100,
		MuxRateBps: 5_000_000,
		Streams: []config.StreamDescriptor{
			{ID: 1, Type: config.StreamVideo, Format: config.FormatAVC, PID: 0x100},
			{ID: 2, Type: config.StreamAudio, Format: config.FormatMP2, PID: 0x101},
		},
	}
}

func TestNewMultiplexerConfiguresStreamTypesAndFrameSizes(t *testing.T) {
	fm := &fakeMuxer{}
	bus := clock.NewBus()
	_, err := NewMultiplexer(fm, bus, testProgram())
	require.NoError(t, err)

	require.Len(t, fm.cfg.Streams, 2)
	byPID := map[uint16]tslib.StreamConfig{}
	for _, s := range fm.cfg.Streams {
		byPID[s.PID] = s
	}
	assert.Equal(t, byte(0x1B), byPID[0x100].StreamType)
	assert.Equal(t, byte(0x03), byPID[0x101].StreamType)
	assert.Equal(t, 1152*90000/48000, byPID[0x101].FrameSizeTicks)
}

func TestAudioFrameSizeTicksPerCodec(t *testing.T) {
	cases := []struct {
		format config.StreamFormat
		want   int
	}{
		{config.FormatMP2, 1152 * 90000 / 48000},
		{config.FormatAAC, 1024 * 90000 / 48000},
		{config.FormatAACLATM, 1024 * 90000 / 48000},
		{config.FormatHEAAC, 1024 * 90000 / 48000},
		{config.FormatAC3, 1536 * 90000 / 48000},
		{config.FormatEAC3, 1536 * 90000 / 48000},
		{config.FormatAVC, 0},
	}
	for _, c := range cases {
		got := audioFrameSizeTicks(config.StreamDescriptor{Format: c.format})
		assert.Equal(t, c.want, got, "format %s", c.format)
	}
}

func TestRequestMuxRateUpdateAppliedOnNextFrame(t *testing.T) {
	fm := &fakeMuxer{}
	bus := clock.NewBus()
	m, err := NewMultiplexer(fm, bus, testProgram())
	require.NoError(t, err)

	m.RequestMuxRateUpdate(8_000_000)

	in := queue.Unbounded[*frame.Coded]()
	out := queue.Unbounded[*frame.MuxChunk]()
	pidOf := func(streamID int) uint16 {
		if streamID == 1 {
			return 0x100
		}
		return 0x101
	}

	go m.Run(in, pidOf, out)
	defer in.Cancel()

	in.Push(&frame.Coded{OutputStreamID: 1, IsVideo: true, PTS: 0, RealPTS: 0, RealDTS: 0, Data: []byte("v0")})

	time.Sleep(20 * time.Millisecond)

	require.Len(t, fm.rateCalls, 1)
	assert.Equal(t, 8_000_000, fm.rateCalls[0])
}

func TestMuxerAnchorsOnFirstVideoFrameAndDiscardsEarlyAudio(t *testing.T) {
	fm := &fakeMuxer{}
	bus := clock.NewBus()
	m, err := NewMultiplexer(fm, bus, testProgram())
	require.NoError(t, err)

	in := queue.Unbounded[*frame.Coded]()
	out := queue.Unbounded[*frame.MuxChunk]()
	pidOf := func(streamID int) uint16 {
		if streamID == 1 {
			return 0x100
		}
		return 0x101
	}
	go m.Run(in, pidOf, out)
	defer in.Cancel()

	// Audio frame with a PTS before any video anchor exists: must be held,
	// not emitted, until video arrives.
	in.Push(&frame.Coded{OutputStreamID: 2, IsVideo: false, PTS: 1000, RealDTS: 1000, Data: []byte("a0")})
	in.Push(&frame.Coded{OutputStreamID: 1, IsVideo: true, PTS: 9000, RealPTS: 9000, RealDTS: 9000, RandomAccess: true, Data: []byte("v0")})

	_, ok := out.Pop()
	require.True(t, ok)

	require.Len(t, fm.writes, 1)
	for _, fr := range fm.writes[0] {
		assert.NotEqual(t, []byte("a0"), fr.Data, "audio frame predating the video anchor must not reach the TS library")
	}
}
