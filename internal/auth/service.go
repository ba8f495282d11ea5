// Package auth issues and verifies the short-lived capability tokens that
// gate operator endpoints.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// DefaultTTL is the lifetime of an admin token.
const DefaultTTL = 300 * time.Second

var (
	ErrTokenMissing = errors.New("admin token missing")
	ErrTokenInvalid = errors.New("admin token invalid")
	ErrTokenExpired = errors.New("admin token expired")
	// ErrNotPrimaryAdmin is returned by Issue for identities outside the allowlist.
	ErrNotPrimaryAdmin = errors.New("not a primary administrator")
)

type Service interface {
	Issue(identity string) (string, error)
	// Verify returns the token's identity, ErrTokenExpired or ErrTokenInvalid.
	Verify(token string) (string, error)
}

// Config configures the token service.
type Config struct {
	Secret        string
	TTL           time.Duration
	PrimaryAdmins []string
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	key    []byte
	ttl    time.Duration
	admins Allowlist
	now    func() time.Time
}

func NewService(cfg Config) (Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("admin token secret is empty")
	}
	key, err := deriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}
	s := &service{
		key:    key,
		ttl:    cfg.TTL,
		admins: NewAllowlist(cfg.PrimaryAdmins),
		now:    cfg.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("reviewcash admin token v1")), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

func (s *service) Issue(identity string) (string, error) {
	if !s.admins.Contains(identity) {
		return "", fmt.Errorf("issue token for %q: %w", identity, ErrNotPrimaryAdmin)
	}
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   identity,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

func (s *service) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrTokenMissing
	}
	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	// Membership is checked now so allowlist changes apply to live tokens.
	if !s.admins.Contains(c.Subject) {
		return "", fmt.Errorf("%w: %q is not a primary administrator", ErrTokenInvalid, c.Subject)
	}
	return c.Subject, nil
}
