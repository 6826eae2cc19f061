// Package pin hashes and verifies courier PINs.
//
// The default scheme is an unsalted SHA-256 hex digest, compatible with PINs
// already stored by the mobile app. It is deterministic, so equal PINs share a
// digest. The bcrypt scheme is salted and should be preferred for new accounts.
package pin

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a hashing algorithm.
type Scheme string

const (
	SchemeSHA256 Scheme = "sha256"
	SchemeBcrypt Scheme = "bcrypt"
)

// ErrUnknownScheme is returned for unsupported scheme names.
var ErrUnknownScheme = errors.New("pin: unknown hash scheme")

// HashPin returns the hex encoded SHA-256 digest of pin.
func HashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// VerifyPin re-hashes pin and compares it with digest.
func VerifyPin(pin, digest string) bool {
	computed := HashPin(pin)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(digest))) == 1
}

// Hasher hashes PINs with a configured scheme and verifies digests of any
// supported scheme, so stored SHA-256 digests keep working after switching
// new accounts to bcrypt.
type Hasher struct {
	scheme Scheme
	cost   int
}

// NewHasher constructs a Hasher. An empty scheme selects SHA-256.
func NewHasher(scheme string) (*Hasher, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(scheme))) {
	case "", SchemeSHA256:
		return &Hasher{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		return &Hasher{scheme: SchemeBcrypt, cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// Scheme reports the scheme used for new hashes.
func (h *Hasher) Scheme() Scheme {
	if h == nil {
		return SchemeSHA256
	}
	return h.scheme
}

// Hash produces a digest of pin.
func (h *Hasher) Hash(pin string) (string, error) {
	if h.Scheme() == SchemeBcrypt {
		out, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
		if err != nil {
			return "", fmt.Errorf("pin: bcrypt: %w", err)
		}
		return string(out), nil
	}
	return HashPin(pin), nil
}

// Verify reports whether pin matches digest.
func (h *Hasher) Verify(pin, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pin)) == nil
	}
	return VerifyPin(pin, digest)
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}
