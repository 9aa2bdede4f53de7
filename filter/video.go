// Package filter implements the per-stream filter workers: video
// colorspace/bit-depth conversion and dithering, ancillary/VBI
// encapsulation, audio channel splitting, and S302M/337M passthrough.
package filter

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/openbroadcast/obe/frame"
	"github.com/openbroadcast/obe/logging"
	"github.com/openbroadcast/obe/queue"
)

// VideoConfig selects the target colorspace/resolution a VideoFilter
// converts every picture to before handing it to the video encoder.
type VideoConfig struct {
	TargetCSP          frame.ColorSpace
	TargetWidth         int
	TargetHeight        int
	TargetBitDepth      int // 8, 10 or 16
}

// VideoFilter applies the per-frame video steps before a frame reaches an
// encoder: per-plane resize (convertColorspace), bit-depth upscale or
// Sierra-2-4A dither, and caption encapsulation through the optional
// AncillaryEncoder. It does not deinterlace, denoise or overlay a logo.
type VideoFilter struct {
	cfg VideoConfig
	log logging.Logger
	anc *AncillaryEncoder
}

// NewVideoFilter builds a VideoFilter for the given target format.
func NewVideoFilter(cfg VideoConfig, anc *AncillaryEncoder) *VideoFilter {
	return &VideoFilter{cfg: cfg, log: logging.For("filter.video"), anc: anc}
}

// Run drains in from the upstream input queue until cancelled, filters
// each picture, and pushes the result to every out queue (one per video
// encoder addressed by this filter chain).
func (f *VideoFilter) Run(in *queue.Queue[*frame.Raw], outs []*queue.Queue[*frame.Raw]) {
	for {
		raw, ok := in.Pop()
		if !ok {
			return
		}
		if raw.Kind != frame.KindPicture {
			raw.Release()
			continue
		}
		filtered, err := f.process(raw)
		if err != nil {
			f.log.Error("video filter failed, dropping frame", "err", err, "stream", raw.InputStreamID)
			raw.Release()
			continue
		}
		for i, out := range outs {
			if i == len(outs)-1 {
				out.Push(filtered)
			} else {
				out.Push(cloneRawPicture(filtered))
			}
		}
	}
}

func cloneRawPicture(r *frame.Raw) *frame.Raw {
	cp := *r
	return &cp
}

// process performs colorspace conversion, bit-depth adaptation and
// ancillary encapsulation, returning a new Raw frame (the input frame's
// buffers are released once no longer needed).
func (f *VideoFilter) process(raw *frame.Raw) (*frame.Raw, error) {
	pic := raw.Picture
	srcBits := bitDepthOf(raw.Picture.CSP)

	if pic.CSP != f.cfg.TargetCSP || pic.Width != f.cfg.TargetWidth || pic.Height != f.cfg.TargetHeight {
		converted, err := convertColorspace(pic, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("colorspace convert: %w", err)
		}
		pic = converted
		srcBits = 8 // convertColorspace yields 8-bit planes (see downTo8)
	}

	if f.cfg.TargetBitDepth > srcBits {
		upscalePlanes(&pic, srcBits, f.cfg.TargetBitDepth)
	} else if f.cfg.TargetBitDepth < srcBits {
		ditherSierra24A(&pic, srcBits, f.cfg.TargetBitDepth)
	}

	out := &frame.Raw{
		InputStreamID: raw.InputStreamID,
		PTS:           raw.PTS,
		Kind:          frame.KindPicture,
		Picture:       pic,
		UserData:      raw.UserData,
	}
	if f.anc != nil {
		out.UserData = f.anc.Encapsulate(raw.UserData, pic)
	}
	raw.Release()
	return out, nil
}

func bitDepthOf(csp frame.ColorSpace) int {
	switch csp {
	case frame.CSPYUV422P10, frame.CSPYUV420P10:
		return 10
	default:
		return 8
	}
}

// convertColorspace is the SwsScale-equivalent step, implemented over
// gocv's Mat/Resize for horizontal/vertical scaling. Luma and both chroma
// planes are each reduced to 8 bits and resized independently, since gocv
// has no notion of a planar 4:2:2/4:2:0 picture; chroma always gets the
// 4:2:2 target geometry (targetPlaneDims). The result is relabelled with
// the target CSP, but no pixel-format conversion (CvtColor) is applied and
// the chroma subsampling is not changed.
func convertColorspace(pic frame.Picture, cfg VideoConfig) (frame.Picture, error) {
	out := pic
	out.Width = cfg.TargetWidth
	out.Height = cfg.TargetHeight
	out.CSP = cfg.TargetCSP
	srcBits := bitDepthOf(pic.CSP)

	for p := 0; p < 3; p++ {
		if len(pic.Plane[p]) == 0 {
			continue
		}
		srcW, srcH := planeDims(pic, p)
		dstW, dstH := targetPlaneDims(cfg, p)

		src, err := planeToMat(pic.Plane[p], srcW, srcH, srcBits)
		if err != nil {
			return frame.Picture{}, err
		}

		dst := gocv.NewMat()
		gocv.Resize(src, &dst, image.Pt(dstW, dstH), 0, 0, gocv.InterpolationLinear)
		out.Plane[p] = dst.ToBytes()
		out.Stride[p] = dstW

		src.Close()
		dst.Close()
	}
	return out, nil
}

// targetPlaneDims mirrors planeDims' 4:2:2 horizontal-subsampling
// convention for the filter's target dimensions.
func targetPlaneDims(cfg VideoConfig, plane int) (w, h int) {
	if plane == 0 {
		return cfg.TargetWidth, cfg.TargetHeight
	}
	return cfg.TargetWidth / 2, cfg.TargetHeight
}

// planeToMat packs one plane into an 8-bit single-channel Mat for gocv's
// scaling path.
func planeToMat(plane []byte, width, height, srcBits int) (gocv.Mat, error) {
	if len(plane) == 0 {
		return gocv.Mat{}, fmt.Errorf("filter: empty plane")
	}
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, downTo8(plane, srcBits))
	if err != nil {
		return gocv.Mat{}, err
	}
	return mat, nil
}

// downTo8 truncates a >8-bit planar buffer down to 8 bits for the gocv
// scaling path; full-precision scaling is out of scope for this pass, the
// dither/upscale routines in bitdepth.go restore the target bit depth
// afterward.
func downTo8(plane []byte, srcBits int) []byte {
	if srcBits <= 8 {
		return plane
	}
	out := make([]byte, len(plane)/2)
	for i := range out {
		out[i] = plane[2*i+1] // high byte of little-endian 16-bit sample
	}
	return out
}
