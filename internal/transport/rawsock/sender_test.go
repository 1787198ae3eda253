package rawsock

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/nerrad567/scanctl/internal/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	failErr error
	closed  bool
}

func (f *fakeConn) WriteFrame(frame []byte, _ net.HardwareAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeOpener struct {
	mu     sync.Mutex
	opened map[string]int
	conns  []*fakeConn
	err    error
	next   func() *fakeConn
}

func (o *fakeOpener) open(iface string) (conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	if o.opened == nil {
		o.opened = make(map[string]int)
	}
	o.opened[iface]++
	c := &fakeConn{}
	if o.next != nil {
		c = o.next()
	}
	o.conns = append(o.conns, c)
	return c, nil
}

var (
	src = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	dst = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
)

func TestTransmitWritesFrame(t *testing.T) {
	o := &fakeOpener{}
	s := newSender(o.open, nil)
	defer s.Close() //nolint:errcheck // Test cleanup

	if err := s.Transmit(context.Background(), src, dst, "eth0", protocol.Encode(0xFF)); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	c := o.conns[0]
	if len(c.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(c.frames))
	}
	want := []byte{
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x07,
		0x00, 0x00, 0x00, 0x00, 0x02, 0x03, 0xFF,
	}
	if !bytes.Equal(c.frames[0], want) {
		t.Errorf("frame = % X\nwant    % X", c.frames[0], want)
	}
}

func TestTransmitCachesPerInterface(t *testing.T) {
	o := &fakeOpener{}
	s := newSender(o.open, nil)
	defer s.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	for _, iface := range []string{"eth0", "eth0", "eth1", "eth0"} {
		if err := s.Transmit(ctx, src, dst, iface, protocol.Encode(0x02)); err != nil {
			t.Fatalf("Transmit(%s) error = %v", iface, err)
		}
	}
	if o.opened["eth0"] != 1 || o.opened["eth1"] != 1 {
		t.Errorf("opened = %v, want one socket per interface", o.opened)
	}
}

func TestTransmitReopensAfterWriteFailure(t *testing.T) {
	failing := true
	o := &fakeOpener{}
	o.next = func() *fakeConn {
		c := &fakeConn{}
		if failing {
			c.failErr = errors.New("network is down")
			failing = false
		}
		return c
	}
	s := newSender(o.open, nil)
	defer s.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := s.Transmit(ctx, src, dst, "eth0", protocol.Encode(0x02)); err == nil {
		t.Fatal("first Transmit() should fail")
	}
	if !o.conns[0].closed {
		t.Error("failed socket should be closed")
	}
	if err := s.Transmit(ctx, src, dst, "eth0", protocol.Encode(0x02)); err != nil {
		t.Fatalf("second Transmit() error = %v", err)
	}
	if o.opened["eth0"] != 2 {
		t.Errorf("opened = %d, want 2", o.opened["eth0"])
	}
}

func TestTransmitErrors(t *testing.T) {
	t.Run("open failure", func(t *testing.T) {
		o := &fakeOpener{err: ErrUnsupported}
		s := newSender(o.open, nil)
		err := s.Transmit(context.Background(), src, dst, "eth0", protocol.Encode(0x02))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("error = %v, want ErrUnsupported", err)
		}
	})

	t.Run("bad address", func(t *testing.T) {
		s := newSender((&fakeOpener{}).open, nil)
		err := s.Transmit(context.Background(), src, net.HardwareAddr{1, 2}, "eth0", protocol.Encode(0x02))
		if !errors.Is(err, protocol.ErrInvalidAddress) {
			t.Errorf("error = %v, want ErrInvalidAddress", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		o := &fakeOpener{}
		s := newSender(o.open, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Transmit(ctx, src, dst, "eth0", protocol.Encode(0x02)); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if len(o.conns) != 0 {
			t.Error("no socket should be opened")
		}
	})

	t.Run("closed", func(t *testing.T) {
		o := &fakeOpener{}
		s := newSender(o.open, nil)
		if err := s.Transmit(context.Background(), src, dst, "eth0", protocol.Encode(0x02)); err != nil {
			t.Fatalf("Transmit() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if !o.conns[0].closed {
			t.Error("Close() should close cached sockets")
		}
		if err := s.Transmit(context.Background(), src, dst, "eth0", protocol.Encode(0x02)); !errors.Is(err, ErrClosed) {
			t.Errorf("error = %v, want ErrClosed", err)
		}
	})
}
