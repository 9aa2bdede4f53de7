package output

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// cachedPacket is one retransmission-eligible RTP packet.
type cachedPacket struct {
	seq     uint16
	sentAt  time.Time
	payload []byte
}

// ARQSink is RTP output with RTCP-based retransmission (RFC 4585 NACK,
// RFC 3611 XR). A sender-side cache indexed
// by sequence number serves re-transmit requests; Send and HandleRTCP
// share the cache under mu.
type ARQSink struct {
	Socket    *Socket
	LatencyMS int

	mu    sync.Mutex
	cache map[uint16]cachedPacket
	order []uint16 // insertion order, for latency-window eviction

	lastSRNTP uint64
	lastSRAt  time.Time
}

// NewARQSink builds a sink with the given retransmission latency window.
func NewARQSink(sock *Socket, latencyMS int) *ARQSink {
	return &ARQSink{Socket: sock, LatencyMS: latencyMS, cache: make(map[uint16]cachedPacket)}
}

// Send transmits payload and caches it for potential retransmission.
func (s *ARQSink) Send(seq uint16, payload []byte) error {
	s.mu.Lock()
	s.cache[seq] = cachedPacket{seq: seq, sentAt: time.Now(), payload: append([]byte(nil), payload...)}
	s.order = append(s.order, seq)
	s.evict()
	s.mu.Unlock()

	return s.Socket.Send(payload)
}

// evict drops packets older than LatencyMS from the head of the cache.
// Caller must hold s.mu.
func (s *ARQSink) evict() {
	cutoff := time.Now().Add(-time.Duration(s.LatencyMS) * time.Millisecond)
	i := 0
	for ; i < len(s.order); i++ {
		p, ok := s.cache[s.order[i]]
		if !ok || p.sentAt.After(cutoff) {
			break
		}
		delete(s.cache, s.order[i])
	}
	s.order = s.order[i:]
}

// HandleRTCP dispatches one received RTCP packet across its four relevant
// cases; reply is used for XR DLRR replies.
func (s *ARQSink) HandleRTCP(pkt rtcp.Packet, reply func(rtcp.Packet) error) error {
	switch p := pkt.(type) {
	case *rtcp.SenderReport:
		s.mu.Lock()
		s.lastSRNTP = p.NTPTime
		s.lastSRAt = time.Now()
		s.mu.Unlock()

	case *rtcp.ReceiverReport:
		_ = s.rttFromReceiverReport(p)

	case *rtcp.ExtendedReport:
		for _, block := range p.Reports {
			if rrt, ok := block.(*rtcp.RRTReportBlock); ok {
				return reply(&rtcp.ExtendedReport{
					Reports: []rtcp.ReportBlock{
						&rtcp.DLRRReportBlock{
							Reports: []rtcp.DLRRReport{{
								LastRR:   uint32(rrt.NTPTimestamp >> 16),
								DLRR:     0,
							}},
						},
					},
				})
			}
		}

	case *rtcp.TransportLayerNack:
		return s.retransmit(p)
	}
	return nil
}

// rttFromReceiverReport computes RTT from delay_since_last_sr and the
// recorded SR timestamp.
func (s *ARQSink) rttFromReceiverReport(rr *rtcp.ReceiverReport) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rr.Reports) == 0 {
		return 0
	}
	block := rr.Reports[0]
	lsrSeconds := float64(block.LastSenderReport) / 65536.0
	dlsrSeconds := float64(block.Delay) / 65536.0
	arrival := float64(time.Since(s.lastSRAt).Seconds())
	rtt := arrival - lsrSeconds - dlsrSeconds
	if rtt < 0 {
		rtt = 0
	}
	return time.Duration(rtt * float64(time.Second))
}

// retransmit re-sends every sequence named in a NACK.
func (s *ARQSink) retransmit(nack *rtcp.TransportLayerNack) error {
	s.mu.Lock()
	var toSend [][]byte
	for _, pair := range nack.Nacks {
		for _, seq := range pair.PacketList() {
			if p, ok := s.cache[seq]; ok {
				toSend = append(toSend, p.payload)
			}
		}
	}
	s.mu.Unlock()

	for _, payload := range toSend {
		if err := s.Socket.Send(payload); err != nil {
			return err
		}
	}
	return nil
}
