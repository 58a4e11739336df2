package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrTokenSeal means a sealed portal token could not be opened: it was
// altered, or it belongs to a different student.
var ErrTokenSeal = errors.New("sealed token rejected")

// Encryptor seals portal access tokens with AES-256-GCM before they are
// stored in a session. The owning student id is bound as associated data,
// so a sealed token copied into another student's session does not open.
type Encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor(hexKey string) (*Encryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Seal returns nonce||ciphertext, base64url encoded without padding.
func (e *Encryptor) Seal(token, studentID string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(token), []byte(studentID))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Open(sealed, studentID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenSeal, err)
	}
	n := e.gcm.NonceSize()
	if len(raw) < n+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrTokenSeal)
	}
	token, err := e.gcm.Open(nil, raw[:n], raw[n:], []byte(studentID))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenSeal, err)
	}
	return string(token), nil
}
