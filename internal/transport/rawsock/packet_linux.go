//go:build linux

package rawsock

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// packetConn is an AF_PACKET/SOCK_RAW socket bound to one interface.
type packetConn struct {
	fd      int
	ifindex int
}

func openPacketConn(iface string) (conn, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}

	// Protocol 0: the socket only sends, it never receives.
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_802_3),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd) //nolint:errcheck // Already failing
		return nil, fmt.Errorf("bind: %w", err)
	}

	return &packetConn{fd: fd, ifindex: ifi.Index}, nil
}

func (p *packetConn) WriteFrame(frame []byte, dst net.HardwareAddr) error {
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_802_3),
		Ifindex:  p.ifindex,
		Halen:    uint8(len(dst)), //nolint:gosec // 6-byte address
	}
	copy(addr.Addr[:], dst)
	return unix.Sendto(p.fd, frame, 0, addr)
}

func (p *packetConn) Close() error {
	return unix.Close(p.fd)
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
