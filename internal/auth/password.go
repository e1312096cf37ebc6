// Password hashing.
//
// bcrypt is slow on purpose, which makes brute-forcing a stolen users.json
// expensive. It also generates a random salt per hash and embeds it in the
// output, so the stored string is all Verify needs:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version

package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used in production.
//
// COST TUNING RULE OF THUMB:
// Set cost so that hashing takes ~200–300ms on your production hardware.
// Too low → easy to crack. Too high → login is sluggish and the server
// spends all its time on bcrypt during traffic spikes.
const defaultCost = 12

// maxBcryptInput is the number of bytes bcrypt looks at.
const maxBcryptInput = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: tests and
// the seed step use a low cost, the server reads it from configuration.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// The cost must be within bcrypt's allowed range (4–31).
func NewPasswordServiceWithCost(cost int) (*PasswordService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt's minimum
// cost. Do NOT use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// It is stored as-is in the user's "password" field. It includes the salt
// and cost, so bcrypt.CompareHashAndPassword needs nothing else to check it.
//
// Any length is accepted; see bcryptInput.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// Returns nil if they match, a non-nil error if they don't.
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword uses a constant-time comparison internally,
// so this function is safe against timing attacks: an attacker can't tell
// from response time whether they got the first byte right.
//
// Usage:
//
//	if err := ps.Verify(user.Password, inputPassword); err != nil {
//	    // wrong password
//	}
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// bcryptInput returns what is actually fed to bcrypt. bcrypt rejects
// anything over 72 bytes, so longer passwords are first reduced to the
// base64 of their SHA-256 (44 bytes). Every byte of a long password then
// still counts. Passwords of 72 bytes or fewer go in unchanged, which keeps
// existing hashes valid.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= maxBcryptInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
