package security

import (
	"encoding/hex"
	"strings"
	"testing"
)

func testKey() string {
	return hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := c.Encrypt("correct-horse-battery")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if sealed == "correct-horse-battery" {
		t.Fatalf("ciphertext must not equal plaintext")
	}
	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "correct-horse-battery" {
		t.Fatalf("got %q", plain)
	}
}

func TestCipher_DecryptToleratesLegacyPlaintext(t *testing.T) {
	c, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	plain, err := c.Decrypt("not-encrypted-at-all")
	if err != nil {
		t.Fatalf("legacy value must pass through, got error %v", err)
	}
	if plain != "not-encrypted-at-all" {
		t.Fatalf("legacy value must pass through verbatim, got %q", plain)
	}
}

func TestCipher_DecryptRejectsTamperedCiphertext(t *testing.T) {
	sealer, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	sealed, err := sealer.Encrypt("correct-horse-battery")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	otherKey := hex.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	opener, err := NewCipher(otherKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if _, err := opener.Decrypt(sealed); err != ErrCiphertextInvalid {
		t.Fatalf("wrong-key decrypt must fail, got err=%v", err)
	}

	// Same key, sealed payload flipped: still ciphertext-shaped, must not
	// pass through as a plaintext password.
	corrupted := sealed[:len(sealed)-4] + "AAA="
	if _, err := sealer.Decrypt(corrupted); err != ErrCiphertextInvalid {
		t.Fatalf("corrupted decrypt must fail, got err=%v", err)
	}
}

func TestNewCipher_RejectsBadKey(t *testing.T) {
	if _, err := NewCipher("deadbeef"); err == nil {
		t.Fatalf("expected error for short key")
	}
	if _, err := NewCipher("zz"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GeneratePassword(24)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 24 || len(b) != 24 {
		t.Fatalf("unexpected lengths %d/%d", len(a), len(b))
	}
	if a == b {
		t.Fatalf("two generated passwords should differ")
	}
	for _, r := range a {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*", r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}

func TestGeneratePassword_EnforcesMinimumLength(t *testing.T) {
	p, err := GeneratePassword(4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(p) < 16 {
		t.Fatalf("expected floor of 16, got %d", len(p))
	}
}
