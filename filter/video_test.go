package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbroadcast/obe/frame"
)

func TestTargetPlaneDimsHalvesChromaWidthOnly(t *testing.T) {
	cfg := VideoConfig{TargetWidth: 8, TargetHeight: 4}

	w, h := targetPlaneDims(cfg, 0)
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)

	w, h = targetPlaneDims(cfg, 1)
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)

	w, h = targetPlaneDims(cfg, 2)
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)
}

// TestConvertColorspaceResizesEveryPlane guards against regressing to the
// luma-only conversion: every one of the three planes must come out at the
// new target's own dimensions, not the source's.
func TestConvertColorspaceResizesEveryPlane(t *testing.T) {
	pic := frame.Picture{CSP: frame.CSPYUV422P, Width: 4, Height: 2}
	pic.Plane[0] = []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pic.Plane[1] = []byte{10, 20, 30, 40}
	pic.Plane[2] = []byte{50, 60, 70, 80}

	cfg := VideoConfig{TargetCSP: frame.CSPYUV422P, TargetWidth: 2, TargetHeight: 2, TargetBitDepth: 8}

	out, err := convertColorspace(pic, cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 2, out.Height)

	assert.Len(t, out.Plane[0], 2*2)
	assert.Equal(t, 2, out.Stride[0])

	assert.Len(t, out.Plane[1], 1*2)
	assert.Equal(t, 1, out.Stride[1])

	assert.Len(t, out.Plane[2], 1*2)
	assert.Equal(t, 1, out.Stride[2])
}

func TestConvertColorspaceSkipsEmptyPlanes(t *testing.T) {
	pic := frame.Picture{CSP: frame.CSPYUV422P, Width: 2, Height: 2}
	pic.Plane[0] = []byte{1, 2, 3, 4}
	// Plane[1]/Plane[2] left empty.

	cfg := VideoConfig{TargetCSP: frame.CSPYUV422P, TargetWidth: 4, TargetHeight: 4, TargetBitDepth: 8}

	out, err := convertColorspace(pic, cfg)
	require.NoError(t, err)
	assert.Len(t, out.Plane[0], 4*4)
	assert.Empty(t, out.Plane[1])
	assert.Empty(t, out.Plane[2])
}

type countingReleaser struct{ n int }

func (c *countingReleaser) Release(token any) { c.n++ }

func TestProcessReleasesInputFrameExactlyOnce(t *testing.T) {
	f := NewVideoFilter(VideoConfig{TargetCSP: frame.CSPYUV422P, TargetWidth: 2, TargetHeight: 2, TargetBitDepth: 8}, nil)

	releaser := &countingReleaser{}
	raw := frame.NewRaw(frame.KindPicture, 0, 0, frame.Release{Kind: frame.ReleasePool, Releaser: releaser})
	raw.Picture = frame.Picture{CSP: frame.CSPYUV422P, Width: 2, Height: 2}
	raw.Picture.Plane[0] = []byte{1, 2, 3, 4}
	raw.Picture.Plane[1] = []byte{5, 6}
	raw.Picture.Plane[2] = []byte{7, 8}

	out, err := f.process(raw)
	require.NoError(t, err)
	assert.Equal(t, frame.CSPYUV422P, out.Picture.CSP)
	assert.Len(t, out.Picture.Plane[0], 4)
	assert.Len(t, out.Picture.Plane[1], 2)
	assert.Len(t, out.Picture.Plane[2], 2)
	assert.Equal(t, 1, releaser.n)
}
