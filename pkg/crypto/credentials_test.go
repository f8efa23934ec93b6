package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

// Test key generated with: openssl rand -base64 32
const testKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM=" // "test-key-for-unit-tests-32-bytes"

func TestNewCredentialEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid 32-byte base64 key",
			key:     testKey,
			wantErr: false,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
			errMsg:  "invalid encryption key",
		},
		{
			name:    "passphrase (not base64) - hashed to 32 bytes",
			key:     "my-simple-passphrase",
			wantErr: false,
		},
		{
			name:    "short base64 key - hashed to 32 bytes",
			key:     base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key")),
			wantErr: false,
		},
		{
			name:    "long base64 key - hashed to 32 bytes",
			key:     base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 64))),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewCredentialEncryptor(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if enc == nil {
				t.Error("expected non-nil encryptor")
			}
		})
	}
}

func TestPassphraseKeyConsistency(t *testing.T) {
	// Same passphrase should produce same encryption/decryption behavior
	passphrase := "my-consistent-passphrase"

	enc1, err := NewCredentialEncryptor(passphrase)
	if err != nil {
		t.Fatalf("failed to create first encryptor: %v", err)
	}

	enc2, err := NewCredentialEncryptor(passphrase)
	if err != nil {
		t.Fatalf("failed to create second encryptor: %v", err)
	}

	plaintext := []byte("secret-data")
	encrypted, err := enc1.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	// Second encryptor with same passphrase should decrypt successfully
	decrypted, err := enc2.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("failed to decrypt with same passphrase: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted mismatch: got %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{
			name:      "connection descriptor JSON",
			plaintext: `{"type":"postgres","host":"db.internal","port":5432,"database":"sales","user":"reader","secret":"hunter2"}`,
		},
		{
			name:      "long secret",
			plaintext: strings.Repeat("x", 4096),
		},
		{
			name:      "unicode content",
			plaintext: "密钥-テスト-키-🔑",
		},
		{
			name:      "special characters",
			plaintext: "key!@#$%^&*()_+-=[]{}|;':\",./<>?",
		},
		{
			name:      "newlines and whitespace",
			plaintext: "key with\nnewlines\tand\r\nwhitespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := enc.Encrypt([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			// Encrypted value should be different from plaintext
			if bytes.Equal(encrypted, []byte(tt.plaintext)) {
				t.Error("encrypted value should differ from plaintext")
			}

			// Decrypt should recover original
			decrypted, err := enc.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}

			if string(decrypted) != tt.plaintext {
				t.Errorf("decrypted value mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	if _, err := enc.Encrypt(nil); err == nil {
		t.Error("expected error for empty plaintext")
	}
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	plaintext := []byte("same-plaintext")
	seen := make(map[string]bool)

	// Encrypt same value multiple times - should produce different ciphertexts
	for i := 0; i < 100; i++ {
		encrypted, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}

		if seen[string(encrypted)] {
			t.Error("encryption produced duplicate ciphertext (nonce reuse)")
		}
		seen[string(encrypted)] = true
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	enc1, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create first encryptor: %v", err)
	}

	// Different 32-byte key (exactly 32 characters)
	differentKey := base64.StdEncoding.EncodeToString([]byte("different-key-for-testing-32-b!!"))
	enc2, err := NewCredentialEncryptor(differentKey)
	if err != nil {
		t.Fatalf("failed to create second encryptor: %v", err)
	}

	plaintext := []byte("secret-connection-password")
	encrypted, err := enc1.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	// Decrypting with wrong key should fail, not return garbage
	_, err = enc2.Decrypt(encrypted)
	if err == nil {
		t.Error("expected decryption to fail with wrong key")
	}
	if !strings.Contains(err.Error(), "decryption failed") {
		t.Errorf("expected 'decryption failed' error, got: %v", err)
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	enc, _ := NewCredentialEncryptor(testKey)

	tests := []struct {
		name    string
		input   []byte
		wantErr string
	}{
		{
			name:    "nil blob",
			input:   nil,
			wantErr: "ciphertext too short",
		},
		{
			name:    "too short ciphertext",
			input:   []byte("short"),
			wantErr: "ciphertext too short",
		},
		{
			name:    "corrupted ciphertext",
			input:   []byte(strings.Repeat("x", 50)),
			wantErr: "authentication failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decrypt(tt.input)
			if err == nil {
				t.Errorf("expected error containing %q, got nil", tt.wantErr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestTamperedBlobFailsAuthentication(t *testing.T) {
	enc, err := NewCredentialEncryptor(testKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	encrypted, err := enc.Encrypt([]byte(`{"user":"reader","secret":"hunter2"}`))
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	// Flip one bit in the ciphertext body
	tampered := make([]byte, len(encrypted))
	copy(tampered, encrypted)
	tampered[len(tampered)/2] ^= 0x01

	if _, err := enc.Decrypt(tampered); err == nil {
		t.Error("expected tampered blob to fail authentication")
	}
}
