package channels

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Cipher encrypts webhook URLs at rest with AES-256-GCM. The key is
// derived from the deployment secret with HKDF so the raw secret never
// acts as key material directly.
type Cipher struct {
	aead cipher.AEAD
}

// hkdfInfo binds derived keys to this purpose; changing it invalidates
// every stored secret.
const hkdfInfo = "reportcenter/webhook-secret/v1"

// NewCipher derives the encryption key from the deployment secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
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

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 token of nonce||ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Tampered or foreign tokens
// fail with ErrDecryptFailure.
func (c *Cipher) Decrypt(token string) (string, error) {
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", entity.ErrDecryptFailure)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: token too short", entity.ErrDecryptFailure)
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrDecryptFailure, err)
	}
	return string(plaintext), nil
}

// Mask renders a secret for display, keeping only the last 8 characters.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return "..." + secret[len(secret)-8:]
}
