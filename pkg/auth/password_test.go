package auth

import (
	"strings"
	"testing"
)

func TestArgon2Parameters(t *testing.T) {
	if argon2Time != 1 {
		t.Errorf("argon2Time = %d, want 1", argon2Time)
	}
	if argon2Memory != 64*1024 {
		t.Errorf("argon2Memory = %d, want %d", argon2Memory, 64*1024)
	}
	if argon2Threads != 4 {
		t.Errorf("argon2Threads = %d, want 4", argon2Threads)
	}
	if argon2KeyLen != 32 {
		t.Errorf("argon2KeyLen = %d, want 32", argon2KeyLen)
	}
}

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("Secret#123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("unexpected hash prefix: %s", hash)
	}

	other, err := HashPassword("Secret#123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == other {
		t.Error("two hashes of the same password should use different salts")
	}
}

func TestVerifyPassword_CaseSensitive(t *testing.T) {
	hash, err := HashPassword("TestPassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "exact match", password: "TestPassword123", want: true},
		{name: "lowercase", password: "testpassword123", want: false},
		{name: "uppercase", password: "TESTPASSWORD123", want: false},
		{name: "trailing space", password: "TestPassword123 ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, hash); got != tt.want {
				t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "bcrypt", hash: "$2a$10$abcdefghijklmnopqrstuv"},
		{name: "wrong version", hash: "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "bad params", hash: "$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA"},
		{name: "missing hash", hash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifyPassword("anything", tt.hash) {
				t.Errorf("VerifyPassword accepted malformed hash %q", tt.hash)
			}
		})
	}
}

func TestHashPassword_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "single char", password: "a"},
		{name: "empty string", password: ""},
		{name: "special characters", password: "p@ssw0rd!#$%^&*()"},
		{name: "unicode", password: "pässwörd123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if err != nil {
				t.Fatalf("HashPassword failed for %q: %v", tt.name, err)
			}
			if !VerifyPassword(tt.password, hash) {
				t.Errorf("VerifyPassword failed for %q", tt.name)
			}
		})
	}
}
