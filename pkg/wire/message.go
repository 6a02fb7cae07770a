package wire

import "encoding/json"

// Message is one decrypted structured message as delivered on the channel's
// shared stream. The event tag and server error field are peeked once during
// decode so that subscribers and call waiters can filter without re-parsing.
type Message struct {
	// Raw is the plaintext JSON object.
	Raw []byte

	// Event is the event tag for server-pushed messages, empty for responses.
	Event string

	// Err is the server error message when the object carries a non-null
	// error field, nil otherwise.
	Err *string
}

type messagePeek struct {
	Event string  `json:"event"`
	Error *string `json:"error"`
}

// DecodeMessage peeks the routing fields of a plaintext message.
func DecodeMessage(plaintext []byte) (Message, error) {
	var peek messagePeek
	if err := json.Unmarshal(plaintext, &peek); err != nil {
		return Message{}, ErrMalformedMessage
	}
	return Message{Raw: plaintext, Event: peek.Event, Err: peek.Error}, nil
}

// IsEvent reports whether the message is a server-pushed event.
func (m Message) IsEvent() bool {
	return m.Event != ""
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return ErrMalformedMessage
	}
	return nil
}
