//go:build !linux

package rawsock

func openPacketConn(string) (conn, error) {
	return nil, ErrUnsupported
}
