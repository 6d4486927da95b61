// Package codec seals chat text with a password before it leaves the client.
//
// Payload format: [salt:16][iv:12][ciphertext+tag:N]
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the PBKDF2-HMAC-SHA256 work factor.
	PBKDF2Iterations = 100000
	SaltSize         = 16
	IVSize           = 12
	KeySize          = 32
	tagSize          = 16
)

var (
	// ErrDecryptionFailed covers a wrong password and a damaged payload alike.
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrEmptyPassword    = errors.New("password cannot be empty")
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt derives a fresh key from password and a random salt, then seals
// plaintext with AES-256-GCM under a random IV.
func Encrypt(plaintext, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	header := make([]byte, SaltSize+IVSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, fmt.Errorf("failed to generate salt and iv: %w", err)
	}
	salt, iv := header[:SaltSize], header[SaltSize:]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}

	return gcm.Seal(header, iv, []byte(plaintext), nil), nil
}

// Decrypt reverses Encrypt. Any authentication failure is reported as
// ErrDecryptionFailed.
func Decrypt(payload []byte, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(payload) < SaltSize+IVSize+tagSize {
		return "", ErrDecryptionFailed
	}

	salt := payload[:SaltSize]
	iv := payload[SaltSize : SaltSize+IVSize]
	ciphertext := payload[SaltSize+IVSize:]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
