package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

const (
	// DefaultBcryptCost is the cost factor for bcrypt password hashing.
	DefaultBcryptCost = 12

	minPasswordLength = 8
	specialChars      = "@$!%*?&"
)

// PasswordHasher hashes and verifies passwords with bcrypt. The salt is
// embedded in the digest.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher. Costs outside bcrypt's accepted range
// fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt digest of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. A malformed digest never
// matches.
func (h *PasswordHasher) Verify(plain, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	return err == nil
}

// ValidatePasswordStrength applies the registration password policy. Rules
// are checked in order and the first unmet rule is reported.
func ValidatePasswordStrength(plain string) error {
	rules := []struct {
		ok  func(string) bool
		msg string
	}{
		{func(s string) bool { return len(s) >= minPasswordLength }, fmt.Sprintf("password must be at least %d characters long", minPasswordLength)},
		{containsFunc(unicode.IsUpper), "password must contain at least one uppercase letter"},
		{containsFunc(unicode.IsLower), "password must contain at least one lowercase letter"},
		{containsFunc(unicode.IsDigit), "password must contain at least one digit"},
		{func(s string) bool { return strings.ContainsAny(s, specialChars) }, "password must contain at least one special character (" + specialChars + ")"},
	}

	for _, r := range rules {
		if !r.ok(plain) {
			return apperrors.InvalidInput(r.msg)
		}
	}
	return nil
}

func containsFunc(f func(rune) bool) func(string) bool {
	return func(s string) bool { return strings.IndexFunc(s, f) >= 0 }
}
