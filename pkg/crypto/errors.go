package crypto

import "errors"

// Crypto package errors.
var (
	// ErrInvalidKeySize is returned when a session key is not 32 bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 32 bytes")

	// ErrInvalidPublicKey is returned when a peer public key is not 32 bytes
	// or produces an all-zero shared secret.
	ErrInvalidPublicKey = errors.New("crypto: invalid peer public key")

	// ErrInvalidNonceSize is returned when a nonce is not 12 bytes.
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size, must be 12 bytes")

	// ErrDecryptFailed is returned when AEAD decryption fails, either because
	// the ciphertext is malformed or the authentication tag does not verify.
	ErrDecryptFailed = errors.New("crypto: decryption failed")

	// ErrCiphertextTooShort is returned when a ciphertext is shorter than the
	// authentication tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than tag")
)
