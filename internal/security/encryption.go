// internal/security/encryption.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"agent-wallet-service/internal/domain"
)

// EncryptionVersion tags envelopes produced by this package.
const EncryptionVersion = "v1"

// Encryption seals wallet secrets with AES-256-GCM.
// Envelopes are base64(nonce || ciphertext).
type Encryption struct {
	masterKey []byte
	version   string
}

// NewEncryption accepts a 32 byte key, raw or base64 encoded.
func NewEncryption(masterKey string) (*Encryption, error) {
	keyBytes := []byte(masterKey)
	if decoded, err := base64.StdEncoding.DecodeString(masterKey); err == nil {
		keyBytes = decoded
	}

	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid master key length: must be 32 bytes for AES-256, got %d", len(keyBytes))
	}

	return &Encryption{
		masterKey: keyBytes,
		version:   EncryptionVersion,
	}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *Encryption) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}

	sealed, err := e.EncryptBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. Any malformed or
// unauthenticated envelope yields domain.ErrDecryption.
func (e *Encryption) Decrypt(envelope string) (string, error) {
	if envelope == "" {
		return "", fmt.Errorf("%w: empty envelope", domain.ErrDecryption)
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: envelope is not base64", domain.ErrDecryption)
	}

	plaintext, err := e.DecryptBytes(decoded)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func (e *Encryption) EncryptBytes(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (e *Encryption) DecryptBytes(ciphertext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) <= nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}

	return plaintext, nil
}

func (e *Encryption) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// GetVersion returns the envelope version stored alongside each record.
func (e *Encryption) GetVersion() string {
	return e.version
}

// GenerateMasterKey returns a random base64 encoded 32 byte key.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
