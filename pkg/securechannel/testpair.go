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

// Accept performs the responder side of the key exchange: it waits for the
// client's dh_key_exchange request, replies with a fresh server public key,
// and returns a Channel keyed with the derived secret.
//
// The real control server lives outside this repository; Accept exists so
// tests can stand up an in-process peer on the other end of a pipe pair.
func Accept(ctx context.Context, t transport.Transport, config Config) (*Channel, error) {
	var log logging.LeveledLogger
	if config.LoggerFactory != nil {
		log = config.LoggerFactory.NewLogger("securechannel-accept")
	}

	recv := t.Subscribe()

	raw, err := recv.Next(ctx)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("securechannel: waiting for key exchange: %w", err)
	}

	var req wire.KeyExchangeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if req.Action != wire.ActionKeyExchange || req.ClientPublicKey == "" {
		recv.Close()
		return nil, fmt.Errorf("%w: unexpected first message", ErrHandshake)
	}
	clientPub, err := base64.StdEncoding.DecodeString(req.ClientPublicKey)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		recv.Close()
		return nil, err
	}
	defer keyPair.Zeroize()

	reply, err := json.Marshal(wire.KeyExchangeReply{
		ServerPublicKey: base64.StdEncoding.EncodeToString(keyPair.PublicKey()),
	})
	if err != nil {
		recv.Close()
		return nil, err
	}
	if err := t.Send(reply); err != nil {
		recv.Close()
		return nil, err
	}

	key, err := keyPair.DeriveSessionKey(clientPub)
	if err != nil {
		recv.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	aead, err := crypto.NewAEAD(key)
	if err != nil {
		recv.Close()
		return nil, err
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
