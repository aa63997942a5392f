package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	secretEnvelopePrefix = "gw.secret.v1:"
	secretAlgorithm      = "aes-256-gcm"
	secretKeyInfo        = "sms-gateway-bridge/gateway-credentials"
)

// Secret cipher errors
var (
	ErrSecretKeyRequired   = errors.New("secret key material is required")
	ErrSecretEmpty         = errors.New("secret is empty")
	ErrSecretEnvelope      = errors.New("invalid secret envelope")
	ErrSecretKeyMismatch   = errors.New("secret was sealed with a different key")
	ErrSecretDecryptFailed = errors.New("secret decryption failed")
)

// SecretCipher seals gateway secrets at rest
type SecretCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type secretEnvelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// AESGCMSecretCipher implements SecretCipher with an AES-256-GCM envelope whose
// key is derived from the application key with HKDF-SHA256.
type AESGCMSecretCipher struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

// NewAESGCMSecretCipher derives a 32 byte key from appKey
func NewAESGCMSecretCipher(appKey, keyID string, version int) (*AESGCMSecretCipher, error) {
	appKey = strings.TrimSpace(appKey)
	if appKey == "" {
		return nil, ErrSecretKeyRequired
	}
	if keyID == "" {
		keyID = "app-key"
	}
	if version <= 0 {
		version = 1
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(appKey), nil, []byte(secretKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &AESGCMSecretCipher{aead: aead, keyID: keyID, version: version}, nil
}

func (c *AESGCMSecretCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrSecretEmpty
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, c.additionalData())
	data, err := json.Marshal(secretEnvelope{
		KeyID:      c.keyID,
		Version:    c.version,
		Algorithm:  secretAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	return append([]byte(secretEnvelopePrefix), data...), nil
}

func (c *AESGCMSecretCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	payload := string(ciphertext)
	if !strings.HasPrefix(payload, secretEnvelopePrefix) {
		return nil, ErrSecretEnvelope
	}

	var env secretEnvelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(payload, secretEnvelopePrefix)), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretEnvelope, err)
	}
	if env.Algorithm != secretAlgorithm {
		return nil, fmt.Errorf("%w: algorithm %q", ErrSecretEnvelope, env.Algorithm)
	}
	if env.KeyID != c.keyID || env.Version != c.version {
		return nil, ErrSecretKeyMismatch
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrSecretEnvelope)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrSecretEnvelope)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, c.additionalData())
	if err != nil {
		return nil, ErrSecretDecryptFailed
	}
	return plaintext, nil
}

// additionalData binds the ciphertext to the key id and version
func (c *AESGCMSecretCipher) additionalData() []byte {
	return []byte(fmt.Sprintf("%s:%d", c.keyID, c.version))
}

var _ SecretCipher = (*AESGCMSecretCipher)(nil)
