package auth

import (
	"errors"
	"strings"
	"testing"
)

// newTestPasswordService returns a PasswordService at bcrypt's minimum cost
// so each hash takes milliseconds instead of ~250ms.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest()
}

func TestNewPasswordServiceWithCost(t *testing.T) {
	if _, err := NewPasswordServiceWithCost(3); err == nil {
		t.Error("NewPasswordServiceWithCost(3) should fail: below bcrypt minimum")
	}
	if _, err := NewPasswordServiceWithCost(32); err == nil {
		t.Error("NewPasswordServiceWithCost(32) should fail: above bcrypt maximum")
	}
	ps, err := NewPasswordServiceWithCost(5)
	if err != nil {
		t.Fatalf("NewPasswordServiceWithCost(5) error = %v", err)
	}
	hash, err := ps.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$05$") {
		t.Errorf("hash %q does not carry cost 05", hash)
	}
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_ReturnsNonEmptyHash(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("my-secret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "" {
		t.Error("Hash() returned empty string")
	}
}

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt hashes always start with $2a$ or $2b$
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	// bcrypt generates a random salt each time, so two hashes for the
	// same password must differ, otherwise rainbow tables would work.
	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_LongPasswordVerifies(t *testing.T) {
	ps := newTestPasswordService()

	longPassword := strings.Repeat("a", 200)
	hash, err := ps.Hash(longPassword)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := ps.Verify(hash, longPassword); err != nil {
		t.Errorf("Verify() with the same long password error = %v", err)
	}

	// Differs only after byte 72, which bcrypt alone would never see.
	other := strings.Repeat("a", 199) + "b"
	if err := ps.Verify(hash, other); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() with a different tail error = %v, want ErrPasswordMismatch", err)
	}
}

func TestHash_AcceptsPasswordExactly72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	exactPassword := strings.Repeat("a", 72)
	_, err := ps.Hash(exactPassword)
	if err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_CorrectPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify() should return nil for a correct password, got: %v", err)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("the-real-password")

	err := ps.Verify(hash, "the-wrong-password")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Verify() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestVerify_EmptyPassword(t *testing.T) {
	ps := newTestPasswordService()

	hash, _ := ps.Hash("some-password")

	err := ps.Verify(hash, "")
	if err == nil {
		t.Fatal("Verify() should return an error when password is empty")
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	// A corrupt hash is a storage problem, not a wrong password.
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("Verify() reported a garbage hash as a password mismatch")
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	cases := []struct {
		name     string
		password string
	}{
		{"simple alphanumeric", "hello123"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace", "  leading and trailing  "},
		{"empty-ish", " "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}

			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() failed for %q: %v", tc.password, err)
			}
		})
	}
}
