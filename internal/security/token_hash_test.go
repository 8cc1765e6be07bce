package security

import (
	"testing"
)

func TestHashToken_Consistent(t *testing.T) {
	token := "test-refresh-token-123"
	hash1 := HashToken(token)
	hash2 := HashToken(token)

	if hash1 != hash2 {
		t.Errorf("HashToken not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
}

func TestHashToken_DifferentTokens(t *testing.T) {
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("HashToken produced same hash for different tokens")
	}
}

func TestTokenHashEqual_CorrectMatch(t *testing.T) {
	token := "test-refresh-token-456"
	storedHash := HashToken(token)

	if !TokenHashEqual(token, storedHash) {
		t.Error("TokenHashEqual should match correct token")
	}
}

func TestTokenHashEqual_RejectsIncorrect(t *testing.T) {
	storedHash := HashToken("correct-token")

	if TokenHashEqual("wrong-token", storedHash) {
		t.Error("TokenHashEqual should reject wrong token")
	}
	if TokenHashEqual("correct-token", "not-a-hash") {
		t.Error("TokenHashEqual should reject malformed stored hash")
	}
}
