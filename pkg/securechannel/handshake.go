// Package securechannel turns a raw transport into an encrypted message bus.
// A one-shot X25519 key exchange runs immediately after connect; every later
// message is sealed with AES-256-GCM and delivered to all stream subscribers
// through a single shared decode pipeline.
package securechannel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pion/logging"

	"github.com/skyward/dronelink/pkg/crypto"
	"github.com/skyward/dronelink/pkg/transport"
	"github.com/skyward/dronelink/pkg/wire"
)

// Config configures a Channel.
type Config struct {
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Dial performs the key exchange over a freshly connected transport and
// returns a Channel ready for encrypted traffic.
//
// The exchange consumes the very first inbound message, so Dial must run
// before any other component reads from the transport. Dial subscribes its
// own receiver before sending the key exchange request and hands that same
// receiver to the channel's decode pipeline, so no message can be lost or
// read twice.
func Dial(ctx context.Context, t transport.Transport, config Config) (*Channel, error) {
	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("securechannel")
	}

	recv := t.Subscribe()

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("securechannel: generate key pair: %w", err)
	}
	defer keyPair.Zeroize()

	req, err := json.Marshal(wire.KeyExchangeRequest{
		Action:          wire.ActionKeyExchange,
		ClientPublicKey: base64.StdEncoding.EncodeToString(keyPair.PublicKey()),
	})
	if err != nil {
		recv.Close()
		return nil, err
	}
	if err := t.Send(req); err != nil {
		recv.Close()
		return nil, err
	}

	// The first message on the connection is the plaintext reply.
	raw, err := recv.Next(ctx)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("securechannel: waiting for handshake reply: %w", err)
	}

	var reply wire.KeyExchangeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if reply.ServerPublicKey == "" {
		recv.Close()
		return nil, fmt.Errorf("%w: missing server public key", ErrHandshake)
	}
	serverPub, err := base64.StdEncoding.DecodeString(reply.ServerPublicKey)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	key, err := keyPair.DeriveSessionKey(serverPub)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	aead, err := crypto.NewAEAD(key)
	if err != nil {
		recv.Close()
		return nil, err
	}

	if log != nil {
		log.Debug("key exchange complete")
	}

	ch := &Channel{
		transport: t,
		aead:      aead,
		hub:       newStreamHub(log),
		log:       log,
	}
	go ch.decodePump(recv)

	return ch, nil
}
