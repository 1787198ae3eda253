package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// Frame layout constants.
const (
	// PayloadSize is the fixed payload length the controllers accept.
	PayloadSize = 7

	// HeaderSize is the IEEE 802.3 header: destination, source, length.
	HeaderSize = 2*hardwareAddrLen + 2

	// FrameSize is the full frame handed to the link layer.
	FrameSize = HeaderSize + PayloadSize

	hardwareAddrLen = 6
	commandOffset   = PayloadSize - 1
)

// payloadPrefix holds the six constant bytes that precede the command byte:
// four zero bytes followed by the 0x02 0x03 marker.
var payloadPrefix = [commandOffset]byte{0x00, 0x00, 0x00, 0x00, 0x02, 0x03}

// EncodePayload builds the 7-byte payload for one command.
// data must hold exactly one byte. Returns ErrInvalidCommandData otherwise.
func EncodePayload(data []byte) ([]byte, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidCommandData, len(data))
	}
	return Encode(data[0]), nil
}

// Encode builds the 7-byte payload for the command byte code.
func Encode(code byte) []byte {
	payload := make([]byte, PayloadSize)
	copy(payload, payloadPrefix[:])
	payload[commandOffset] = code
	return payload
}

// DecodeCommand extracts the command byte from a payload produced by Encode.
// Returns ErrInvalidPayload if the length or constant bytes do not match.
func DecodeCommand(payload []byte) (byte, error) {
	if len(payload) != PayloadSize {
		return 0, fmt.Errorf("%w: length %d, want %d", ErrInvalidPayload, len(payload), PayloadSize)
	}
	for i, b := range payloadPrefix {
		if payload[i] != b {
			return 0, fmt.Errorf("%w: byte %d is 0x%02X, want 0x%02X", ErrInvalidPayload, i, payload[i], b)
		}
	}
	return payload[commandOffset], nil
}

// BuildFrame wraps payload in an IEEE 802.3 header. The length field carries
// the payload size, so the controllers see an LLC frame rather than an
// EtherType. Short frames are padded to the Ethernet minimum by the NIC.
func BuildFrame(dst, src net.HardwareAddr, payload []byte) ([]byte, error) {
	if len(dst) != hardwareAddrLen {
		return nil, fmt.Errorf("%w: destination %q", ErrInvalidAddress, dst)
	}
	if len(src) != hardwareAddrLen {
		return nil, fmt.Errorf("%w: source %q", ErrInvalidAddress, src)
	}

	frame := make([]byte, HeaderSize+len(payload))
	copy(frame[0:6], dst)
	copy(frame[6:12], src)
	binary.BigEndian.PutUint16(frame[12:14], uint16(len(payload))) //nolint:gosec // payload is a few bytes
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// ParseFrame splits a frame built by BuildFrame into its parts.
func ParseFrame(frame []byte) (dst, src net.HardwareAddr, payload []byte, err error) {
	if len(frame) < HeaderSize {
		return nil, nil, nil, fmt.Errorf("%w: frame of %d bytes", ErrInvalidPayload, len(frame))
	}
	length := int(binary.BigEndian.Uint16(frame[12:14]))
	if HeaderSize+length > len(frame) {
		return nil, nil, nil, fmt.Errorf("%w: length field %d exceeds frame", ErrInvalidPayload, length)
	}
	dst = net.HardwareAddr(append([]byte(nil), frame[0:6]...))
	src = net.HardwareAddr(append([]byte(nil), frame[6:12]...))
	payload = append([]byte(nil), frame[HeaderSize:HeaderSize+length]...)
	return dst, src, payload, nil
}

// ParseHardwareAddr parses a 6-byte MAC in colon or hyphen notation.
func ParseHardwareAddr(s string) (net.HardwareAddr, error) {
	addr, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(addr) != hardwareAddrLen {
		return nil, fmt.Errorf("%w: %q is not a 6-byte address", ErrInvalidAddress, s)
	}
	return addr, nil
}

// NormalizeHardwareAddr returns s in lowercase colon notation
// (aa:bb:cc:dd:ee:ff), the canonical identity form for controllers.
func NormalizeHardwareAddr(s string) (string, error) {
	addr, err := ParseHardwareAddr(s)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
