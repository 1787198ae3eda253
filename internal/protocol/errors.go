package protocol

import (
	"errors"
	"fmt"
)

// Domain errors for the protocol package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, protocol.ErrUnknownCommand) {
//	    // name is not in the catalog
//	}
var (
	// ErrUnknownCommand is returned when a command name is not in the catalog.
	ErrUnknownCommand = errors.New("protocol: unknown command")

	// ErrUnknownGroup is returned when a command group name is not in the catalog.
	// It wraps ErrUnknownCommand so callers can treat both the same way.
	ErrUnknownGroup = fmt.Errorf("%w group", ErrUnknownCommand)

	// ErrUnknownOption is returned when a group has no option with the given label.
	ErrUnknownOption = errors.New("protocol: unknown option")

	// ErrInvalidCommandData is returned when the encoder is not given exactly one command byte.
	ErrInvalidCommandData = errors.New("protocol: command data must be exactly one byte")

	// ErrInvalidPayload is returned when a payload does not match the fixed frame layout.
	ErrInvalidPayload = errors.New("protocol: invalid payload")

	// ErrInvalidAddress is returned when a hardware address is not a 6-byte MAC.
	ErrInvalidAddress = errors.New("protocol: invalid hardware address")
)
