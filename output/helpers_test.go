package output

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newLoopbackReceiver opens a UDP listener on 127.0.0.1 with an
// OS-assigned port, returning the connection and the port other tests dial.
func newLoopbackReceiver(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

// newLoopbackSocket dials a Socket at a receiver already listening on port.
func newLoopbackSocket(t *testing.T, port int) *Socket {
	t.Helper()
	sock, err := DialUDP(URI{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	return sock
}

// drainCount reads datagrams off conn until 100ms passes without one,
// returning how many arrived.
func drainCount(t *testing.T, conn *net.UDPConn) int {
	t.Helper()
	buf := make([]byte, 2048)
	n := 0
	for {
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if _, _, err := conn.ReadFromUDP(buf); err != nil {
			return n
		}
		n++
	}
}
