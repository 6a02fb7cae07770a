package securechannel

import "errors"

// Secure channel errors.
var (
	// ErrHandshake is returned when the server's first message is not a
	// valid key exchange reply. The connection cannot be recovered; dial
	// again from scratch.
	ErrHandshake = errors.New("securechannel: invalid handshake reply")

	// ErrStreamClosed is returned when reading from a closed subscriber.
	ErrStreamClosed = errors.New("securechannel: stream closed")
)
