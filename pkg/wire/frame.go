// Package wire defines the control protocol spoken over the session channel:
// the encrypted message envelope, the handshake messages that precede it, and
// the closed catalog of request, response and event shapes.
package wire

import (
	"encoding/base64"
	"encoding/json"
)

// FrameKind distinguishes the two inbound message variants. The variant is
// resolved exactly once, at the channel boundary, rather than re-checked by
// every consumer.
type FrameKind int

const (
	// FramePlaintext is an unencrypted control message. Only the handshake
	// reply is expected in this form, before any session key exists.
	FramePlaintext FrameKind = iota

	// FrameEncrypted is an AEAD-sealed envelope.
	FrameEncrypted
)

// Envelope is the post-handshake wire format: a random per-message nonce and
// the ciphertext with the authentication tag appended, both base64-encoded.
type Envelope struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Encode serializes the envelope for transmission.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NewEnvelope base64-encodes raw nonce and ciphertext bytes into an Envelope.
func NewEnvelope(nonce, ciphertext []byte) Envelope {
	return Envelope{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
}

// Decode returns the raw nonce and ciphertext bytes.
func (e Envelope) Decode() (nonce, ciphertext []byte, err error) {
	nonce, err = base64.StdEncoding.DecodeString(e.Nonce)
	if err != nil {
		return nil, nil, ErrMalformedEnvelope
	}
	ciphertext, err = base64.StdEncoding.DecodeString(e.Ciphertext)
	if err != nil {
		return nil, nil, ErrMalformedEnvelope
	}
	return nonce, ciphertext, nil
}

// Frame is a classified raw inbound message.
type Frame struct {
	Kind     FrameKind
	Envelope Envelope // valid when Kind == FrameEncrypted
	Raw      []byte   // original bytes, valid when Kind == FramePlaintext
}

// framePeek probes a raw message for envelope fields.
type framePeek struct {
	Nonce      *string `json:"nonce"`
	Ciphertext *string `json:"ciphertext"`
}

// DecodeFrame classifies a raw inbound message. A message carrying both
// nonce and ciphertext fields is an encrypted envelope; anything else passes
// through as plaintext (the handshake reply predates encryption).
func DecodeFrame(raw []byte) (Frame, error) {
	var peek framePeek
	if err := json.Unmarshal(raw, &peek); err != nil {
		return Frame{}, ErrMalformedFrame
	}
	if peek.Nonce != nil && peek.Ciphertext != nil {
		return Frame{
			Kind:     FrameEncrypted,
			Envelope: Envelope{Nonce: *peek.Nonce, Ciphertext: *peek.Ciphertext},
		}, nil
	}
	return Frame{Kind: FramePlaintext, Raw: raw}, nil
}
