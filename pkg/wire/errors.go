package wire

import "errors"

// Wire format errors.
var (
	// ErrMalformedFrame is returned when a raw inbound message is not a JSON object.
	ErrMalformedFrame = errors.New("wire: malformed frame, not a JSON object")

	// ErrMalformedEnvelope is returned when an encrypted envelope carries
	// invalid base64 in its nonce or ciphertext field.
	ErrMalformedEnvelope = errors.New("wire: malformed encrypted envelope")

	// ErrMalformedMessage is returned when a decrypted payload is not a JSON object.
	ErrMalformedMessage = errors.New("wire: malformed message payload")
)
