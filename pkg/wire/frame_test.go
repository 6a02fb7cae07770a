package wire

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind FrameKind
		wantErr  error
	}{
		{
			name:     "encrypted envelope",
			raw:      `{"nonce":"AAAA","ciphertext":"BBBB"}`,
			wantKind: FrameEncrypted,
		},
		{
			name:     "plaintext handshake reply",
			raw:      `{"server_public_key":"AAAA"}`,
			wantKind: FramePlaintext,
		},
		{
			name:     "nonce without ciphertext stays plaintext",
			raw:      `{"nonce":"AAAA"}`,
			wantKind: FramePlaintext,
		},
		{
			name:     "ciphertext without nonce stays plaintext",
			raw:      `{"ciphertext":"BBBB"}`,
			wantKind: FramePlaintext,
		},
		{
			name:     "empty object stays plaintext",
			raw:      `{}`,
			wantKind: FramePlaintext,
		},
		{
			name:    "not JSON",
			raw:     `not json at all`,
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(tt.raw))
			if err != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if frame.Kind != tt.wantKind {
				t.Errorf("DecodeFrame() kind = %v, want %v", frame.Kind, tt.wantKind)
			}
			if tt.wantKind == FramePlaintext && !bytes.Equal(frame.Raw, []byte(tt.raw)) {
				t.Errorf("plaintext frame modified: got %q, want %q", frame.Raw, tt.raw)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	ciphertext := []byte("ciphertext plus tag")

	env := NewEnvelope(nonce, ciphertext)
	gotNonce, gotCiphertext, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(gotNonce, nonce) {
		t.Errorf("nonce = %x, want %x", gotNonce, nonce)
	}
	if !bytes.Equal(gotCiphertext, ciphertext) {
		t.Errorf("ciphertext = %q, want %q", gotCiphertext, ciphertext)
	}
}

func TestEnvelopeDecode_BadBase64(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{name: "bad nonce", env: Envelope{Nonce: "!!!", Ciphertext: base64.StdEncoding.EncodeToString([]byte("ok"))}},
		{name: "bad ciphertext", env: Envelope{Nonce: base64.StdEncoding.EncodeToString([]byte("ok")), Ciphertext: "!!!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.env.Decode(); err != ErrMalformedEnvelope {
				t.Errorf("Decode() error = %v, want %v", err, ErrMalformedEnvelope)
			}
		})
	}
}
