package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoURL is returned when no endpoint URL is configured.
	ErrNoURL = errors.New("transport: no endpoint URL configured")

	// ErrReceiverClosed is returned when reading from a closed receiver.
	ErrReceiverClosed = errors.New("transport: receiver closed")
)
