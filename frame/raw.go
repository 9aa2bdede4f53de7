package frame

import "github.com/openbroadcast/obe/clock"

// Kind discriminates the payload carried by a Raw frame.
type Kind int

const (
	KindPicture Kind = iota
	KindAudio
	KindAncillary
)

// UserDataType enumerates the recognized ancillary/user-data payload kinds
// carried alongside a picture, via raw_frame.user_data[].
type UserDataType int

const (
	UserDataCEA608 UserDataType = iota
	UserDataCEA708
	UserDataAFD
	UserDataBarData
	UserDataTimecode
	UserDataVBI
)

// UserData is one opaque ancillary payload attached to a picture.
type UserData struct {
	Type UserDataType
	Data []byte
	// Line is the VBI source line number, meaningful only for UserDataVBI.
	Line int
	// Field is the VANC/VBI field parity, meaningful only for UserDataVBI.
	Field int
}

// Timecode is an SMPTE timecode as carried by the input adapter.
type Timecode struct {
	HH, MM, SS, FF int
	DropFrame      bool
}

// PictureFormat enumerates the recognized video formats (the picture's
// "format" field).
type PictureFormat int

const (
	Format1080i50 PictureFormat = iota
	Format1080i5994
	Format1080p25
	Format1080p2997
	Format1080p50
	Format1080p5994
	Format720p50
	Format720p5994
	Format576i50
	Format480i5994
)

// ColorSpace enumerates the recognized picture colorspaces.
type ColorSpace int

const (
	CSPYUV422P10 ColorSpace = iota // captured 4:2:2 planar 10-bit
	CSPYUV420P
	CSPYUV422P
	CSPYUV420P10
)

// Picture is the video-specific payload of a Raw frame: planar 4:2:2
// 10-bit (or already-converted) picture data.
type Picture struct {
	CSP    ColorSpace
	Width  int
	Height int
	Stride [4]int
	Plane  [4][]byte

	SARNum, SARDen int
	Format         PictureFormat

	FirstLine  int
	Interlaced bool
	TFF        bool // top-field-first

	TimebaseNum, TimebaseDen int

	ValidTimecode bool
	Timecode      Timecode
}

// SampleFormat enumerates audio sample storage; the filter stage always
// converts to planar int32 before handing audio to an encoder.
type SampleFormat int

const (
	SampleFmtPlanarS32 SampleFormat = iota
)

// Audio is the audio-specific payload of a Raw frame: planar int32 PCM.
type Audio struct {
	SampleFmt   SampleFormat
	NumChannels int
	NumSamples  int
	Data        [][]int32 // Data[plane][sample]
	SampleRate  int
}

// Ancillary is the ancillary-only payload of a Raw frame (e.g. a raw VANC
// packet not yet associated with a picture's user-data list).
type Ancillary struct {
	Data []byte
}

// Raw is raw_frame: a uniformly-typed carrier for a picture, an audio
// block, or ancillary data.
type Raw struct {
	InputStreamID int
	PTS           clock.Ticks

	// VideoPTS/VideoDuration gate the muxing of audio frames whose
	// emission must wait on a picture; only meaningful when Kind is
	// KindAudio.
	VideoPTS      clock.Ticks
	VideoDuration clock.Ticks
	HasVideoGate  bool

	UserData []UserData

	Kind      Kind
	Picture   Picture
	Audio     Audio
	Ancillary Ancillary

	release Release
}

// NewRaw constructs a Raw frame with the given release discipline.
func NewRaw(kind Kind, inputStreamID int, pts clock.Ticks, release Release) *Raw {
	return &Raw{Kind: kind, InputStreamID: inputStreamID, PTS: pts, release: release}
}

// Release runs the frame's release discipline exactly once, per the
// ownership invariant: when consumed, the worker invokes release_data
// once, then release_frame once; further use is forbidden. Both steps
// collapse into a single Do call here because Go's GC already reclaims the
// frame struct itself once the last reference drops — only the backing
// buffers (Kind==ReleasePool/ReleaseImported) need an explicit hand-back.
func (r *Raw) Release() {
	r.release.Do()
}
