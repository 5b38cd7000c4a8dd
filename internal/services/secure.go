package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "v1:"

// ErrUndecodable is returned for values that were not produced by the encoder
var ErrUndecodable = errors.New("value cannot be decoded")

// Encoder is the boundary free-text fields pass through before storage.
// Amounts never go through it.
type Encoder interface {
	EncodeText(plain string) (string, error)
	DecodeText(encoded string) (string, error)
	EncodeJSON(v any) (string, error)
	DecodeJSON(encoded string, v any) error
}

// SealedEncoder encrypts with XChaCha20-Poly1305 under a random nonce and
// emits "v1:" + base64(nonce || ciphertext)
type SealedEncoder struct {
	key []byte
}

// NewSealedEncoder creates an encoder from a 32-byte key
func NewSealedEncoder(key []byte) (*SealedEncoder, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &SealedEncoder{key: k}, nil
}

// NewEphemeralEncoder creates an encoder with a random key. Values it writes
// cannot be read after a restart.
func NewEphemeralEncoder() (*SealedEncoder, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return NewSealedEncoder(key)
}

// EncodeText seals plain
func (e *SealedEncoder) EncodeText(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecodeText opens a value produced by EncodeText
func (e *SealedEncoder) DecodeText(encoded string) (string, error) {
	payload, ok := strings.CutPrefix(encoded, sealedPrefix)
	if !ok {
		return "", ErrUndecodable
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrUndecodable
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return string(plain), nil
}

// EncodeJSON marshals v and seals the JSON text
func (e *SealedEncoder) EncodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return e.EncodeText(string(data))
}

// DecodeJSON opens a value produced by EncodeJSON into v
func (e *SealedEncoder) DecodeJSON(encoded string, v any) error {
	plain, err := e.DecodeText(encoded)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}
