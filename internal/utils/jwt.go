package utils // package utils holds the credential and session token primitives

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session token failures.  Handlers translate these into 400/401 responses.
var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrRevokedToken   = errors.New("token revoked")
	ErrAlreadyRevoked = errors.New("token already revoked")
	ErrStalePassword  = errors.New("password changed after token was issued")
)

// RevocationStore is the set of revoked token digests.  Revoke must be
// atomic: it reports false when a live entry for the digest already exists.
type RevocationStore interface {
	IsRevoked(ctx context.Context, digest string) (bool, error)
	Revoke(ctx context.Context, digest string, exp time.Time) (bool, error)
}

// Claims is the payload of a session token.  Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Session is a verified token.
type Session struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues, verifies and revokes HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, store RevocationStore) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

// WithClock replaces the time source used for issuing and validating.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token for userID, valid for the configured lifetime.
func (s *TokenService) Issue(userID uuid.UUID) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Truncate(time.Second), nil
}

// Parse checks signature, structure and expiry.  It does not consult the
// revocation set.
func (s *TokenService) Parse(raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, ErrMissingToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil })
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || claims.IssuedAt == nil {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: id, IssuedAt: claims.IssuedAt.Time, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses raw and rejects it if it has been revoked.
func (s *TokenService) Verify(ctx context.Context, raw string) (Session, error) {
	sess, err := s.Parse(raw)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsRevoked(ctx, HashToken(strings.TrimSpace(raw)))
	if err != nil {
		return Session{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Session{}, ErrRevokedToken
	}
	return sess, nil
}

// Revoke adds raw to the revocation set until its natural expiry.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrMissingToken
	}
	digest := HashToken(raw)
	revoked, err := s.store.IsRevoked(ctx, digest)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrAlreadyRevoked
	}
	sess, err := s.Parse(raw)
	if err != nil {
		return err
	}
	added, err := s.store.Revoke(ctx, digest, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	if !added {
		return ErrAlreadyRevoked
	}
	return nil
}

// CheckFreshness rejects a session issued before the password last changed.
// Both sides are compared at whole-second precision.
func (s *TokenService) CheckFreshness(sess Session, changedAt *time.Time) error {
	if changedAt == nil {
		return nil
	}
	if sess.IssuedAt.Unix() < changedAt.Unix() {
		return ErrStalePassword
	}
	return nil
}
