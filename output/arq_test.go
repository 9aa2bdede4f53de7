package output

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestARQSinkRetransmitsNackedSequence(t *testing.T) {
	recv, port := newLoopbackReceiver(t)
	defer recv.Close()
	sock := newLoopbackSocket(t, port)
	defer sock.Close()

	sink := NewARQSink(sock, 1000)
	require.NoError(t, sink.Send(10, []byte("ten")))
	require.NoError(t, sink.Send(11, []byte("eleven")))
	drainCount(t, recv) // drain the two immediate sends

	nack := &rtcp.TransportLayerNack{
		Nacks: []rtcp.NackPair{{PacketID: 10, LostPackets: 0}},
	}
	require.NoError(t, sink.HandleRTCP(nack, nil))

	buf := make([]byte, 64)
	recv.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := recv.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "ten", string(buf[:n]))
}

func TestARQSinkEvictsPastLatencyWindow(t *testing.T) {
	recv, port := newLoopbackReceiver(t)
	defer recv.Close()
	sock := newLoopbackSocket(t, port)
	defer sock.Close()

	sink := NewARQSink(sock, 20) // 20ms window
	require.NoError(t, sink.Send(1, []byte("x")))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, sink.Send(2, []byte("y")))
	drainCount(t, recv)

	sink.mu.Lock()
	_, stillCached := sink.cache[1]
	sink.mu.Unlock()
	assert.False(t, stillCached, "seq 1 should have been evicted past the latency window")
}

func TestARQSinkXRReplyCarriesSenderNTP(t *testing.T) {
	recv, port := newLoopbackReceiver(t)
	defer recv.Close()
	sock := newLoopbackSocket(t, port)
	defer sock.Close()

	sink := NewARQSink(sock, 1000)
	xr := &rtcp.ExtendedReport{
		Reports: []rtcp.ReportBlock{
			&rtcp.RRTReportBlock{NTPTimestamp: 0x1122334455667788},
		},
	}

	var replied rtcp.Packet
	err := sink.HandleRTCP(xr, func(p rtcp.Packet) error {
		replied = p
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, replied)

	out, ok := replied.(*rtcp.ExtendedReport)
	require.True(t, ok)
	require.Len(t, out.Reports, 1)
	dlrr, ok := out.Reports[0].(*rtcp.DLRRReportBlock)
	require.True(t, ok)
	require.Len(t, dlrr.Reports, 1)
	assert.Equal(t, uint32(0x1122334455667788>>16), dlrr.Reports[0].LastRR)
}

func TestARQSinkSenderReportRecordsNTP(t *testing.T) {
	recv, port := newLoopbackReceiver(t)
	defer recv.Close()
	sock := newLoopbackSocket(t, port)
	defer sock.Close()

	sink := NewARQSink(sock, 1000)
	sr := &rtcp.SenderReport{NTPTime: 42}
	require.NoError(t, sink.HandleRTCP(sr, nil))

	sink.mu.Lock()
	got := sink.lastSRNTP
	sink.mu.Unlock()
	assert.Equal(t, uint64(42), got)
}
