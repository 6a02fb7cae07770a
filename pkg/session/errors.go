package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrNotConnected is returned when a call is attempted before Init
	// opened the channel, or after the channel was closed.
	ErrNotConnected = errors.New("session: channel not open")

	// ErrNoEndpoint is returned when neither an endpoint URL nor a custom
	// dial function is configured.
	ErrNoEndpoint = errors.New("session: no endpoint configured")

	// ErrNoStore is returned when no credential store is configured.
	ErrNoStore = errors.New("session: no credential store configured")

	// ErrNotAuthenticated is returned when an authenticated call is
	// attempted without an access token.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrMalformedGrant is returned when a login, register or refresh
	// response is missing a token field. Partial tokens are never stored.
	ErrMalformedGrant = errors.New("session: token grant missing fields")

	// ErrMalformedResponse is returned when a success response is missing a
	// required field.
	ErrMalformedResponse = errors.New("session: malformed response")
)

// RemoteError is a server-reported failure: any response carrying a non-null
// error field. It is the terminal outcome of that call; nothing is retried.
type RemoteError struct {
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("session: server error: %s", e.Message)
}

// IsRemote reports whether err is a server-reported failure.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
