package crypto

import (
	"bytes"
	"testing"
)

func TestSealOpen(t *testing.T) {
	cipher, err := NewCipher("test-secret-key")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", nil},
		{"simple", []byte("hello world")},
		{"json", []byte(`{"user":"alice","request_id":"r-1"}`)},
		{"binary", []byte{0x00, 0xff, 0x10, 0x01}},
		{"unicode", []byte("🔒 sealed 🔒")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := cipher.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}

			// Empty input should not be sealed
			if len(tt.plaintext) == 0 {
				if len(sealed) != 0 {
					t.Errorf("empty input should stay empty, got %q", sealed)
				}
				return
			}

			if !IsSealed(sealed) {
				t.Errorf("sealed value should have enc: prefix")
			}
			if bytes.Contains(sealed, tt.plaintext) {
				t.Errorf("sealed value contains plaintext")
			}

			opened, err := cipher.Open(sealed)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("opened = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestPlaintextPassthrough(t *testing.T) {
	cipher, err := NewCipher("test-secret-key")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	plaintext := []byte("not-sealed-value")
	result, err := cipher.Open(plaintext)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(result, plaintext) {
		t.Errorf("plaintext passthrough failed: got %q, want %q", result, plaintext)
	}
}

func TestDoubleSealIsNoop(t *testing.T) {
	cipher, err := NewCipher("test-secret-key")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	sealed1, err := cipher.Seal([]byte("secret-value"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	sealed2, err := cipher.Seal(sealed1)
	if err != nil {
		t.Fatalf("second Seal failed: %v", err)
	}
	if !bytes.Equal(sealed1, sealed2) {
		t.Error("sealing an already sealed value should be a no-op")
	}
}

func TestWrongKeyFails(t *testing.T) {
	c1, _ := NewCipher("key-one")
	c2, _ := NewCipher("key-two")

	sealed, err := c1.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := c2.Open(sealed); err == nil {
		t.Error("Open with the wrong key should fail")
	}
}

func TestTruncatedFails(t *testing.T) {
	c, _ := NewCipher("key")
	if _, err := c.Open([]byte("enc:abc")); err != ErrTooShort {
		t.Errorf("got %v, want ErrTooShort", err)
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := NewCipher(""); err == nil {
		t.Error("expected error for empty secret")
	}
}
