package encoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/queue"
)

type fakeVideoCodec struct {
	outputs   []VideoEncoderOutput
	err       error
	vbv       VBVParams
	ready     bool
	encodeCnt int
}

func (f *fakeVideoCodec) Open(params VideoParams) error           { return nil }
func (f *fakeVideoCodec) UpdateParams(params VideoParams) error   { return nil }
func (f *fakeVideoCodec) Ready() (VBVParams, bool)                { return f.vbv, f.ready }
func (f *fakeVideoCodec) Close() error                            { return nil }
func (f *fakeVideoCodec) Encode(pic frame.Picture) ([]VideoEncoderOutput, error) {
	f.encodeCnt++
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs, nil
}

func TestVideoRunProducesCodedFramesFromHRD(t *testing.T) {
	codec := &fakeVideoCodec{
		ready: true,
		vbv:   VBVParams{BufferSize: 1000, MaxBitrate: 500},
		outputs: []VideoEncoderOutput{
			{
				Data: []byte("au0"),
				HRD: HRDTiming{
					CPBRemovalTime:    1.0,
					DPBOutputTime:     1.1,
					CPBInitialArrival: 0.5,
					CPBFinalArrival:   0.9,
					RandomAccess:      true,
					Priority:          true,
				},
			},
		},
	}
	v := NewVideo(7, codec)

	in := queue.New[*frame.Raw](4)
	out := queue.New[*frame.Coded](4)

	in.Push(frame.NewRaw(frame.KindPicture, 7, 0, frame.Release{Kind: frame.ReleaseGC}))
	in.Cancel()

	v.Run(in, out)

	c, ok := out.Pop()
	require.True(t, ok)
	assert.Equal(t, 7, c.OutputStreamID)
	assert.True(t, c.IsVideo)
	assert.True(t, c.RandomAccess)
	assert.True(t, c.Priority)
	assert.Equal(t, []byte("au0"), c.Data)
	assert.Equal(t, secondsToTicks(1.0), c.RealDTS)
	assert.Equal(t, secondsToTicks(1.1), c.RealPTS)

	vbv, ready := v.Ready()
	assert.True(t, ready)
	assert.Equal(t, codec.vbv, vbv)
}

func TestVideoRunSkipsNonPictureFrames(t *testing.T) {
	codec := &fakeVideoCodec{}
	v := NewVideo(1, codec)

	in := queue.New[*frame.Raw](4)
	out := queue.New[*frame.Coded](4)
	in.Push(frame.NewRaw(frame.KindAudio, 1, 0, frame.Release{Kind: frame.ReleaseGC}))
	in.Cancel()

	v.Run(in, out)
	assert.Equal(t, 0, codec.encodeCnt)
	assert.Equal(t, 0, out.Len())
}

func TestVideoRunDropsFrameOnEncodeError(t *testing.T) {
	codec := &fakeVideoCodec{err: errors.New("boom")}
	v := NewVideo(1, codec)

	in := queue.New[*frame.Raw](4)
	out := queue.New[*frame.Coded](4)
	in.Push(frame.NewRaw(frame.KindPicture, 1, 0, frame.Release{Kind: frame.ReleaseGC}))
	in.Cancel()

	v.Run(in, out)
	assert.Equal(t, 0, out.Len())
}

func TestSecondsToTicksScalesBy27MHz(t *testing.T) {
	assert.Equal(t, int64(27_000_000), int64(secondsToTicks(1.0)))
}
