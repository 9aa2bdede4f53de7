package output

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Socket wraps one UDP destination with the socket options an output
// needs: TOS, multicast TTL for both v4 and v6, SO_REUSEADDR, and optional
// source-interface binding via SO_BINDTODEVICE.
type Socket struct {
	conn *net.UDPConn
	v4   *ipv4.PacketConn
	v6   *ipv6.PacketConn
	dst  *net.UDPAddr
}

// DialUDP opens a UDP socket for uri and configures it per the parsed
// options. SO_REUSEADDR and the SO_BINDTODEVICE interface bind are applied
// in the ListenConfig's Control hook, before TOS/TTL are set on the
// resulting connection.
func DialUDP(uri URI) (*Socket, error) {
	dst, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", uri.Host, uri.Port))
	if err != nil {
		return nil, fmt.Errorf("output: resolve %s:%d: %w", uri.Host, uri.Port, err)
	}

	localAddr := fmt.Sprintf(":%d", uri.LocalPort)
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if uri.Reuse {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
						ctrlErr = e
					}
				}
				if uri.Iface != "" {
					if e := unix.BindToDevice(int(fd), uri.Iface); e != nil {
						ctrlErr = e
					}
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("output: listen udp %s: %w", localAddr, err)
	}
	conn := pc.(*net.UDPConn)

	s := &Socket{conn: conn, dst: dst}

	if dst.IP.To4() != nil {
		s.v4 = ipv4.NewPacketConn(conn)
		if uri.TTL > 0 {
			if isMulticast(dst.IP) {
				_ = s.v4.SetMulticastTTL(uri.TTL)
			} else {
				_ = s.v4.SetTTL(uri.TTL)
			}
		}
		if uri.TOS > 0 {
			_ = s.v4.SetTOS(uri.TOS)
		}
	} else {
		s.v6 = ipv6.NewPacketConn(conn)
		if uri.TTL > 0 {
			if isMulticast(dst.IP) {
				_ = s.v6.SetMulticastHopLimit(uri.TTL)
			} else {
				_ = s.v6.SetHopLimit(uri.TTL)
			}
		}
		if uri.TOS > 0 {
			_ = s.v6.SetTrafficClass(uri.TOS)
		}
	}

	return s, nil
}

// Send transmits payload to the configured destination.
func (s *Socket) Send(payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, s.dst)
	return err
}

// Close releases the socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

func isMulticast(ip net.IP) bool {
	return ip.IsMulticast()
}
