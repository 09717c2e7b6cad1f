// Package jwt provides a TokenSource that mints short-lived HS256 bearer
// tokens for gateways that require signed JWTs instead of plain API keys.
//
// Tokens are cached and re-minted shortly before expiry, so a session of
// many completion calls signs only occasionally.
package jwt

import (
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/ruderlabs/ruder/pkg/auth"
)

// Config holds the token minting configuration.
type Config struct {
	// Secret is the shared HS256 signing secret. Required.
	Secret string

	// Issuer is the iss claim. Optional.
	Issuer string

	// Subject is the sub claim. Optional.
	Subject string

	// Audience is the aud claim. Optional.
	Audience string

	// TTL is the token lifetime. Default: 5 minutes.
	TTL time.Duration

	// now allows tests to control time.
	now func() time.Time
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.now == nil {
		c.now = time.Now
	}
}

// Source mints and caches HS256 bearer tokens.
type Source struct {
	cfg Config

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ auth.TokenSource = (*Source)(nil)

// New creates a Source with the given configuration.
// Returns an error if no signing secret is configured.
func New(cfg Config) (*Source, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt: Secret is required")
	}
	cfg.applyDefaults()
	return &Source{cfg: cfg}, nil
}

// Token returns a valid bearer token, minting a fresh one when the cached
// token is absent or within 30 seconds of expiry.
func (s *Source) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()
	if s.token != "" && now.Before(s.expires.Add(-30*time.Second)) {
		return s.token, nil
	}

	expires := now.Add(s.cfg.TTL)
	claims := jwtlib.MapClaims{
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if s.cfg.Issuer != "" {
		claims["iss"] = s.cfg.Issuer
	}
	if s.cfg.Subject != "" {
		claims["sub"] = s.cfg.Subject
	}
	if s.cfg.Audience != "" {
		claims["aud"] = s.cfg.Audience
	}

	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).
		SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	s.token = token
	s.expires = expires
	return token, nil
}
