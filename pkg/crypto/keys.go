// Ephemeral key agreement for the control channel.
// One X25519 exchange runs per connection, immediately after dial, and the
// derived key encrypts every message for the lifetime of that connection.

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Key material sizes.
const (
	// PublicKeySize is the X25519 public key length.
	PublicKeySize = 32

	// PrivateKeySize is the X25519 private key length.
	PrivateKeySize = 32

	// SessionKeySize is the derived AES-256 session key length.
	SessionKeySize = 32
)

// Session key derivation info string. Both peers must use the same value.
var sessionKeyInfo = []byte("dronelink session key v1")

// KeyPair is an ephemeral X25519 key pair. It lives exactly as long as one
// connection and is never persisted.
type KeyPair struct {
	priv [PrivateKeySize]byte
	pub  [PublicKeySize]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := io.ReadFull(rand.Reader, kp.priv[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.pub[:], pub)
	return kp, nil
}

// PublicKey returns the public half of the key pair.
func (kp *KeyPair) PublicKey() []byte {
	pub := make([]byte, PublicKeySize)
	copy(pub, kp.pub[:])
	return pub
}

// DeriveSessionKey combines the local private key with the peer's public key
// and expands the result into a 32-byte AES-256 session key via HKDF-SHA256.
// Both peers derive the identical key:
//
//	DeriveSessionKey(localPriv, remotePub) == DeriveSessionKey(remotePriv, localPub)
func (kp *KeyPair) DeriveSessionKey(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	// X25519 rejects the all-zero (low order) shared secret.
	shared, err := curve25519.X25519(kp.priv[:], peerPublic)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	reader := hkdf.New(sha256.New, shared, nil, sessionKeyInfo)
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Zeroize clears the private key material.
// Call this once the session key has been derived.
func (kp *KeyPair) Zeroize() {
	for i := range kp.priv {
		kp.priv[i] = 0
	}
}
