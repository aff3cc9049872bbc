package auth

import (
	"strings"
	"testing"
)

func TestTokenGenerator_Generate(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, err := tg.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q does not start with %q", token, TokenPrefix)
	}
	if hash != tg.Hash(token) {
		t.Error("returned hash does not match Hash(token)")
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}
}

func TestTokenGenerator_GenerateUnique(t *testing.T) {
	tg := NewTokenGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := tg.Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}

func TestTokenGenerator_ValidateFormat(t *testing.T) {
	tg := NewTokenGenerator()

	valid, _, err := tg.Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"generated token is valid", valid, false},
		{"missing prefix", "abc123", true},
		{"prefix only", TokenPrefix, true},
		{"invalid base64url payload", TokenPrefix + "!!!not-base64!!!", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
		})
	}
}

func TestTokenGenerator_HashDeterministic(t *testing.T) {
	tg := NewTokenGenerator()

	if tg.Hash("parley_abc") != tg.Hash("parley_abc") {
		t.Error("Hash is not deterministic")
	}
	if tg.Hash("parley_abc") == tg.Hash("parley_abd") {
		t.Error("distinct tokens produced identical hashes")
	}
}
