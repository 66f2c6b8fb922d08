package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/natours-api/internal/model"
)

// ResetToken is a freshly generated password reset token.  Only Digest and
// Expires are stored; Plain goes to the user and nowhere else.
type ResetToken struct {
	Plain   string
	Digest  string
	Expires time.Time
}

// Credentials hashes and checks passwords and issues reset tokens.  Cost and
// reset lifetime are fixed at construction.
type Credentials struct {
	cost     int
	resetTTL time.Duration
	now      func() time.Time

	dummyOnce sync.Once
	dummy     []byte
}

func NewCredentials(cost int, resetTTL time.Duration) *Credentials {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if resetTTL <= 0 {
		resetTTL = 10 * time.Minute
	}
	return &Credentials{cost: cost, resetTTL: resetTTL, now: time.Now}
}

// WithClock replaces the time source.  Tests only.
func (c *Credentials) WithClock(now func() time.Time) *Credentials {
	c.now = now
	return c
}

// Hash returns the bcrypt hash of plain.
func (c *Credentials) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt hash and a candidate password.
func (c *Credentials) Verify(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// VerifyMissing spends one comparison against a throwaway hash so that a
// login for an unknown email takes as long as a wrong password.
func (c *Credentials) VerifyMissing(candidate string) {
	c.dummyOnce.Do(func() {
		c.dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), c.cost)
	})
	_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(candidate))
}

// SetPassword hashes plain into u, stamps the change one second in the past
// and clears any pending reset.  The offset keeps a token issued right after
// the change from reading as older than it.
func (c *Credentials) SetPassword(u *model.User, plain string) error {
	hash, err := c.Hash(plain)
	if err != nil {
		return err
	}
	changed := c.now().UTC().Add(-time.Second)
	u.Password = hash
	u.PasswordChangedAt = &changed
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	return nil
}

// NewResetToken generates a reset token from 32 random bytes.
func (c *Credentials) NewResetToken() (ResetToken, error) {
	plain, err := randomHex(32)
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Plain:   plain,
		Digest:  HashToken(plain),
		Expires: c.now().UTC().Add(c.resetTTL),
	}, nil
}

// HashToken returns the SHA-256 hex digest of a raw token.  Reset tokens and
// revoked session tokens are only ever stored in this form.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
