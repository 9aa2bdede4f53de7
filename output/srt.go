package output

import "errors"

// ErrUnsupported is returned by SRTSink.Open: no SRT library was retrieved
// in the corpus or its ecosystem neighbors. SRTSink exists so the fan-out
// dispatch table stays complete and a real SRT binding is a one-file swap.
var ErrUnsupported = errors.New("output: srt is not implemented")

// SRTSink documents the same-shaped payload handoff contract an SRT output
// needs — alternative handshake plus encrypted transport, owning its own
// socket and control-plane thread — without implementing it.
type SRTSink struct {
	Dest string
}

// Open always fails with ErrUnsupported.
func (s *SRTSink) Open() error {
	return ErrUnsupported
}

// Send always fails with ErrUnsupported.
func (s *SRTSink) Send(payload []byte) error {
	return ErrUnsupported
}

// Close is a no-op; nothing was ever opened.
func (s *SRTSink) Close() error {
	return nil
}
