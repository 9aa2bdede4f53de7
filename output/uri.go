// Package output implements the per-output fan-out workers: UDP emission,
// RTP framing, ProMPEG COP3 FEC, FECFRAME LDPC-Staircase, RTCP-based ARQ,
// duplication delay, and SRT (stubbed, out of pack).
package output

import (
	"fmt"
	"net/url"
	"strconv"
)

// URI is the parsed form of an output descriptor's destination:
// udp://HOST:PORT[?ttl=N&tos=N&localport=N&iface=NAME&buffer_size=N&reuse=1].
type URI struct {
	Scheme     string
	Host       string
	Port       int
	TTL        int
	TOS        int
	LocalPort  int
	Iface      string
	BufferSize int
	Reuse      bool
}

// ParseURI parses the output URI grammar.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("output: parse uri %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return URI{}, fmt.Errorf("output: uri %q missing host", raw)
	}

	out := URI{Scheme: u.Scheme, Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return URI{}, fmt.Errorf("output: uri %q bad port: %w", raw, err)
		}
		out.Port = port
	}

	q := u.Query()
	out.TTL = atoiOr(q.Get("ttl"), 0)
	out.TOS = atoiOr(q.Get("tos"), 0)
	out.LocalPort = atoiOr(q.Get("localport"), 0)
	out.Iface = q.Get("iface")
	out.BufferSize = atoiOr(q.Get("buffer_size"), 0)
	out.Reuse = q.Get("reuse") == "1"
	return out, nil
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
