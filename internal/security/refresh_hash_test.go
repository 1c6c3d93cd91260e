package security

import (
	"encoding/hex"
	"testing"
)

func TestNewRefreshSecret(t *testing.T) {
	first, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	second, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}

	// 256 bits hex-encoded.
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64", len(first))
	}
	if _, err := hex.DecodeString(first); err != nil {
		t.Errorf("secret is not hex: %v", err)
	}
	if first == second {
		t.Error("two secrets must not collide")
	}
}

func TestNewRefreshSecret_HashRoundTrip(t *testing.T) {
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	stored := HashRefreshToken(secret)

	if stored == secret {
		t.Error("stored hash must differ from the raw secret")
	}
	if !RefreshTokenHashEqual(secret, stored) {
		t.Error("freshly issued secret must match its stored hash")
	}
}

func TestHashRefreshToken(t *testing.T) {
	if HashRefreshToken("tok-a") != HashRefreshToken("tok-a") {
		t.Error("hash must be deterministic")
	}
	if HashRefreshToken("tok-a") == HashRefreshToken("tok-b") {
		t.Error("distinct tokens must hash differently")
	}
	if got := len(HashRefreshToken("")); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("the-token")

	if !RefreshTokenHashEqual("the-token", stored) {
		t.Error("matching token rejected")
	}
	if RefreshTokenHashEqual("other-token", stored) {
		t.Error("wrong token accepted")
	}
	if RefreshTokenHashEqual("the-token", "a"+stored) {
		t.Error("length-mismatched hash accepted")
	}
	if RefreshTokenHashEqual("the-token", "a"+stored[1:]) {
		t.Error("corrupted hash accepted")
	}
	if RefreshTokenHashEqual("", "") {
		t.Error("empty stored hash accepted")
	}
}
