package console

import "errors"

// Domain errors for the console package.
var (
	// ErrNothingToSend is returned when a configuration has no enabled groups.
	ErrNothingToSend = errors.New("console: no enabled commands to send")

	// ErrNoEnabledUnits is returned by Broadcast when no scan unit is both
	// enabled and bound to a controller.
	ErrNoEnabledUnits = errors.New("console: no enabled scan units")

	// ErrNoInterface is returned when neither the controller nor the console
	// configuration names a network interface.
	ErrNoInterface = errors.New("console: no network interface")

	// ErrNoSource is returned when the source address cannot be determined.
	ErrNoSource = errors.New("console: source address unavailable")
)
