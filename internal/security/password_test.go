package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if IsLegacy(hash) {
		t.Fatalf("argon2 hash reported as legacy")
	}
	ok, err := VerifyPassword(hash, "secret")
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}
	ok, err = VerifyPassword(hash, "wrong")
	if err != nil {
		t.Fatalf("verify password wrong: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHashEmpty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	ok, err := VerifyPassword("", "")
	if err != nil || ok {
		t.Fatalf("empty stored hash must never verify: ok=%v err=%v", ok, err)
	}
}

func TestVerifyLegacy(t *testing.T) {
	sum := sha256.Sum256([]byte("hunter2"))
	legacy := hex.EncodeToString(sum[:])
	if !IsLegacy(legacy) {
		t.Fatalf("expected legacy hash")
	}
	ok, err := VerifyPassword(legacy, "hunter2")
	if err != nil || !ok {
		t.Fatalf("expected legacy password to verify: ok=%v err=%v", ok, err)
	}
	ok, _ = VerifyPassword(legacy, "hunter3")
	if ok {
		t.Fatalf("expected legacy mismatch")
	}
}

func TestVerifyMalformed(t *testing.T) {
	if _, err := VerifyPassword("$argon2id$v=19$bogus", "x"); err == nil {
		t.Fatalf("expected format error")
	}
}
