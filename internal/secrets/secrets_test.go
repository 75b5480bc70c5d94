package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	var key [32]byte
	key[0] = 7
	s := NewSealer(key)

	sealed, err := s.Seal("sk-test-1234")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if strings.Contains(sealed, "sk-test") {
		t.Error("Sealed value leaks the plain key")
	}

	plain, err := s.Open(sealed)
	if err != nil || plain != "sk-test-1234" {
		t.Errorf("Open returned %q, %v", plain, err)
	}

	again, _ := s.Seal("sk-test-1234")
	if again == sealed {
		t.Error("Two seals of the same value should differ by nonce")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	var k1, k2 [32]byte
	k2[31] = 1
	sealed, _ := NewSealer(k1).Seal("secret")

	if _, err := NewSealer(k2).Open(sealed); err != ErrOpen {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
	if _, err := NewSealer(k1).Open("not base64!"); err != ErrOpen {
		t.Errorf("Expected ErrOpen on garbage, got %v", err)
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	k1, err := LoadOrCreateKey("", path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("key file not written: %v", err)
	}

	k2, err := LoadOrCreateKey("", path)
	if err != nil || k1 != k2 {
		t.Errorf("Expected the stored key to be reused (%v)", err)
	}

	if _, err := LoadOrCreateKey("abcd", path); err == nil {
		t.Error("Expected short hex key to be rejected")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk-abcdef1234"); got != "…1234" {
		t.Errorf("Unexpected mask %q", got)
	}
	if got := Mask("abc"); got != "***" {
		t.Errorf("Unexpected short mask %q", got)
	}
}
