package mux

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/tidwall/gjson"

	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/logging"
)

// SpliceEvent is one decoded line from a stream descriptor's SCTE-35 TCP
// source.
type SpliceEvent struct {
	PTS     clock.Ticks
	Command string
	EventID int64
}

// SCTE35Source reads newline-delimited JSON splice events off a TCP
// connection, one stream descriptor's scte35_source host:port at a time.
// No splice-insert validation beyond field extraction is implemented — the
// distilled wire contract names only pts/command/event_id.
type SCTE35Source struct {
	Addr string
	log  logging.Logger
}

// NewSCTE35Source builds a source for the given host:port address.
func NewSCTE35Source(addr string) *SCTE35Source {
	return &SCTE35Source{Addr: addr, log: logging.For("mux.scte35")}
}

// Run connects to Addr and calls onEvent for every decoded line until ctx
// is cancelled or the connection drops.
func (s *SCTE35Source) Run(ctx context.Context, onEvent func(SpliceEvent)) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("scte35: dial %s: %w", s.Addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			s.log.Warn("scte35: malformed json line", "source", s.Addr)
			continue
		}
		result := gjson.ParseBytes(line)
		ev := SpliceEvent{
			PTS:     clock.Ticks(result.Get("pts").Int()),
			Command: result.Get("command").String(),
			EventID: result.Get("event_id").Int(),
		}
		onEvent(ev)
	}
	return scanner.Err()
}

// EncodeOpaque packs a SpliceEvent into the raw bytes stamped onto a
// Coded.SCTE35Opaque field, a compact encoding since no splice_info_section
// construction is in scope.
func EncodeOpaque(ev SpliceEvent) []byte {
	out := make([]byte, 0, 24)
	out = appendUint64(out, uint64(ev.PTS))
	out = appendUint64(out, uint64(ev.EventID))
	out = append(out, []byte(ev.Command)...)
	return out
}

func appendUint64(b []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
