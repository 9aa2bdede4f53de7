package frame

import "github.com/openbroadcast/obe/clock"

// ProgramDescriptor is the input adapter's probe() result: the detected
// streams available for opening.
type ProgramDescriptor struct {
	Streams []DetectedStream
}

// DetectedStream is one stream an input adapter's probe found.
type DetectedStream struct {
	ID           int
	Format       PictureFormat
	Width        int
	Height       int
	TimebaseNum  int
	TimebaseDen  int
	SARNum       int
	SARDen       int
	ChannelLayout []int
	Language     string
	SubtitleType string
	TeletextPages []int
}

// Source is the input-adapter contract the core consumes. Capture
// drivers (SDI, SMPTE 2022-6/2110, color bars) implement this externally;
// the core only depends on the interface.
type Source interface {
	// Probe returns the detected program's streams.
	Probe() (ProgramDescriptor, error)
	// Open starts producing Raw frames for the given stream subset onto ch.
	// Open must call Tick on bus for every picture before delivering its
	// frame: clock_tick(pts) is called on each picture before frame
	// delivery.
	Open(streamSubset []int, bus *clock.Bus, ch chan<- *Raw) error
	// Close stops production and releases adapter-owned resources.
	Close() error
}
