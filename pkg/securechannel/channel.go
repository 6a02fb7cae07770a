package securechannel

import (
	"encoding/json"
	"fmt"

	"github.com/pion/logging"

	"github.com/skyward/dronelink/pkg/crypto"
	"github.com/skyward/dronelink/pkg/transport"
	"github.com/skyward/dronelink/pkg/wire"
)

// Channel is an encrypted request/event bus over one transport connection.
// Outbound structured messages are sealed per message with a fresh nonce;
// inbound messages pass through one shared decode pipeline and fan out to
// every subscriber.
type Channel struct {
	transport transport.Transport
	aead      *crypto.AEAD
	hub       *streamHub
	log       logging.LeveledLogger
}

// Send serializes, seals and transmits one structured message.
func (c *Channel) Send(v any) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("securechannel: marshal: %w", err)
	}

	nonce, ciphertext, err := c.aead.Seal(plaintext)
	if err != nil {
		return fmt.Errorf("securechannel: seal: %w", err)
	}

	raw, err := wire.NewEnvelope(nonce, ciphertext).Encode()
	if err != nil {
		return err
	}
	return c.transport.Send(raw)
}

// Subscribe registers a new subscriber on the decrypted stream. Every
// subscriber sees every message; decoding happens once, not per subscriber.
func (c *Channel) Subscribe() *Subscriber {
	return c.hub.subscribe()
}

// Close closes the wrapped transport. All subscribers terminate.
func (c *Channel) Close() error {
	err := c.transport.Close()
	c.hub.close()
	return err
}

// decodePump decodes every raw inbound message exactly once and publishes
// the result. A message that fails to decrypt or parse is dropped; the
// stream keeps running for all subscribers.
func (c *Channel) decodePump(recv *transport.Receiver) {
	defer recv.Close()
	defer c.hub.close()

	for raw := range recv.Messages() {
		frame, err := wire.DecodeFrame(raw)
		if err != nil {
			if c.log != nil {
				c.log.Warnf("dropping malformed frame: %v", err)
			}
			continue
		}

		var plaintext []byte
		switch frame.Kind {
		case wire.FramePlaintext:
			// Unencrypted control message, delivered unmodified.
			plaintext = frame.Raw
		case wire.FrameEncrypted:
			nonce, ciphertext, err := frame.Envelope.Decode()
			if err != nil {
				if c.log != nil {
					c.log.Warnf("dropping message with malformed envelope: %v", err)
				}
				continue
			}
			plaintext, err = c.aead.Open(nonce, ciphertext)
			if err != nil {
				if c.log != nil {
					c.log.Warnf("dropping message that failed to decrypt: %v", err)
				}
				continue
			}
		}

		msg, err := wire.DecodeMessage(plaintext)
		if err != nil {
			if c.log != nil {
				c.log.Warnf("dropping unparseable message: %v", err)
			}
			continue
		}
		c.hub.publish(msg)
	}
}
