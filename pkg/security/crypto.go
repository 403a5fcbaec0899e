package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

var generatedPasswordCharset = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*")

// ErrInvalidKey signals a key that is not 32 bytes of hex.
var ErrInvalidKey = fmt.Errorf("encryption key must be 64 hex characters (32 bytes)")

// ErrCiphertextInvalid signals a value that looks like sealed ciphertext but
// fails authentication: wrong key, truncation, or tampering.
var ErrCiphertextInvalid = fmt.Errorf("ciphertext failed authentication")

// Cipher performs AES-256-GCM encryption of short secrets, base64-wrapped so
// the ciphertext can travel through provider metadata fields.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("cipher not initialized")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values that never were ciphertext pass through
// verbatim: signup payloads written before encryption was introduced carried
// the raw value, and those checkouts must still complete. A value that does
// decode as sealed ciphertext but fails authentication returns
// ErrCiphertextInvalid instead, so a wrong key or a tampered payload cannot
// masquerade as a plaintext password.
func (c *Cipher) Decrypt(value string) (string, error) {
	if c == nil || c.aead == nil {
		return value, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(sealed) < c.aead.NonceSize() {
		return value, nil
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	out, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(out), nil
}

// GeneratePassword returns a random password of the given length drawn from
// a mixed charset, suitable as a stand-in when the user's chosen password is
// rejected as compromised.
func GeneratePassword(length int) (string, error) {
	if length < 16 {
		length = 16
	}
	out := make([]rune, length)
	max := big.NewInt(int64(len(generatedPasswordCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = generatedPasswordCharset[n.Int64()]
	}
	return string(out), nil
}
