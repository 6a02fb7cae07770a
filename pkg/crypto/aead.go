package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

// AEAD parameters for the control channel.
const (
	// NonceSize is the AES-GCM nonce length. A fresh random nonce is
	// generated for every outbound message.
	NonceSize = 12

	// TagSize is the GCM authentication tag length. The tag is appended to
	// the ciphertext before transmission.
	TagSize = 16
)

// AEAD encrypts and decrypts channel messages with AES-256-GCM.
// It is safe for concurrent use.
type AEAD struct {
	gcm cipher.AEAD
}

// NewAEAD creates an AEAD from a 32-byte session key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != SessionKeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
// Returns the nonce and the ciphertext with the 16-byte tag appended.
func (a *AEAD) Seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = a.gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext (with trailing tag) under the given nonce.
// Returns ErrDecryptFailed if the tag does not verify.
func (a *AEAD) Open(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < TagSize {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := a.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
