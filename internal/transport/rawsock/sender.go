// Package rawsock transmits raw IEEE 802.3 frames on a named interface.
//
// On Linux frames are written through AF_PACKET sockets, one per interface,
// opened on first use and kept until Close. Other platforms return
// ErrUnsupported. Sending raw frames requires CAP_NET_RAW.
package rawsock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/nerrad567/scanctl/internal/protocol"
)

var (
	// ErrUnsupported is returned on platforms without raw socket support.
	ErrUnsupported = errors.New("rawsock: raw frames are not supported on this platform")

	// ErrClosed is returned by Transmit after Close.
	ErrClosed = errors.New("rawsock: sender closed")
)

// Logger defines the logging interface used by the Sender.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// conn is an open link-layer endpoint on one interface.
type conn interface {
	WriteFrame(frame []byte, dst net.HardwareAddr) error
	Close() error
}

type opener func(iface string) (conn, error)

// Sender writes frames to the link layer. It satisfies dispatch.Transmitter.
//
// Thread Safety: safe for concurrent use. Writes on the same interface are
// serialised.
type Sender struct {
	open   opener
	logger Logger

	mu     sync.Mutex
	conns  map[string]*lockedConn
	closed bool
}

type lockedConn struct {
	mu sync.Mutex
	c  conn
}

// New creates a sender using the platform's raw socket support.
func New(logger Logger) *Sender {
	return newSender(openPacketConn, logger)
}

func newSender(open opener, logger Logger) *Sender {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sender{
		open:   open,
		logger: logger,
		conns:  make(map[string]*lockedConn),
	}
}

// Transmit wraps payload in an 802.3 header and writes it on iface.
// A write failure drops the cached socket so the next call reopens it.
func (s *Sender) Transmit(ctx context.Context, src, dst net.HardwareAddr, iface string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := protocol.BuildFrame(dst, src, payload)
	if err != nil {
		return err
	}

	lc, err := s.conn(iface)
	if err != nil {
		return err
	}

	lc.mu.Lock()
	err = lc.c.WriteFrame(frame, dst)
	lc.mu.Unlock()

	if err != nil {
		s.drop(iface, lc)
		return fmt.Errorf("writing frame on %s: %w", iface, err)
	}

	s.logger.Debug("frame sent",
		"interface", iface,
		"source", src.String(),
		"destination", dst.String(),
		"bytes", len(frame),
	)
	return nil
}

func (s *Sender) conn(iface string) (*lockedConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if lc, ok := s.conns[iface]; ok {
		return lc, nil
	}

	c, err := s.open(iface)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", iface, err)
	}
	lc := &lockedConn{c: c}
	s.conns[iface] = lc
	s.logger.Info("raw socket opened", "interface", iface)
	return lc, nil
}

func (s *Sender) drop(iface string, lc *lockedConn) {
	s.mu.Lock()
	if cur, ok := s.conns[iface]; ok && cur == lc {
		delete(s.conns, iface)
	}
	s.mu.Unlock()

	if err := lc.c.Close(); err != nil {
		s.logger.Warn("closing raw socket", "interface", iface, "error", err)
	}
}

// Close closes every cached socket. Transmit fails with ErrClosed afterwards.
func (s *Sender) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*lockedConn)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for iface, lc := range conns {
		if err := lc.c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", iface, err))
		}
	}
	return errors.Join(errs...)
}
