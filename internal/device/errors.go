package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a key is not in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidKey is returned when a brand or device ID is empty.
	ErrInvalidKey = errors.New("device: invalid key")

	// ErrInvalidEvent is returned when a history event kind is not recognised.
	ErrInvalidEvent = errors.New("device: invalid history event")

	// ErrHistoryQueueFull is returned when the async history writer is saturated.
	ErrHistoryQueueFull = errors.New("device: history queue full")
)
