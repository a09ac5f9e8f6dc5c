package bridge

import "errors"

// Domain-specific errors for the bridge.
var (
	// ErrSessionClosed is returned when sending to a session that has closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrSendBufferFull is returned when a slow session cannot accept more data.
	ErrSendBufferFull = errors.New("session send buffer full")

	// ErrDataSubscription means the device data subscription could not be
	// established. The bridge must not run without it.
	ErrDataSubscription = errors.New("device data subscription failed")

	// ErrUnknownCommand is logged for client messages with an unrecognised type.
	ErrUnknownCommand = errors.New("unknown client command")
)
