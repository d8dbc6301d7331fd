// Package auth issues and verifies the two kinds of signed tokens the API
// hands out, and carries the resulting viewer through request contexts.
//
// TWO TOKENS, ONE SECRET:
//   - Magic-link token: mailed to the user inside the confirmation URL.
//     Claims {userId, promiseId}, audience "magic-link", short lived
//     (MAGIC_LINK_EXPIRY, default 1h). Proves the holder can read the
//     mailbox the promise was submitted from.
//   - Session token: set as the picketly_session cookie after a successful
//     confirmation. Subject = user id, audience "session", 30 days.
//
// Both are HS256 JWTs signed with JWT_SECRET. The audience claim keeps them
// apart: a session cookie pasted into a confirmation URL fails verification,
// and so does a magic-link token presented as a cookie.
//
// Neither token is stored server-side. Verification needs only the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer            = "picketly"
	audienceSession   = "session"
	audienceMagicLink = "magic-link"

	// SessionTTL is the lifetime of a session token and its cookie.
	SessionTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken covers every verification failure: bad signature,
// expired, wrong audience, missing claims. Callers are not told which.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies tokens with an HMAC secret.
type TokenService struct {
	secret       []byte
	magicLinkTTL time.Duration
	now          func() time.Time
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock overrides time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production (openssl rand -hex 32); anything under
// 16 characters is rejected.
func NewTokenService(secret string, magicLinkTTL time.Duration, opts ...Option) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if magicLinkTTL <= 0 {
		return nil, errors.New("auth: magic link expiry must be positive")
	}
	s := &TokenService{
		secret:       []byte(secret),
		magicLinkTTL: magicLinkTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MagicLinkTTL returns the configured magic-link lifetime.
func (s *TokenService) MagicLinkTTL() time.Duration {
	return s.magicLinkTTL
}

// =========================================================================
// MAGIC LINKS
// =========================================================================

// MagicLinkClaims identifies the promise a confirmation link belongs to.
type MagicLinkClaims struct {
	UserID    string `json:"userId"`
	PromiseID string `json:"promiseId"`
	jwt.RegisteredClaims
}

// IssueMagicLink signs a token for confirming promiseID on behalf of userID.
// Each token gets a random jti so two links for the same promise differ.
func (s *TokenService) IssueMagicLink(userID, promiseID string) (string, error) {
	now := s.now()
	c := MagicLinkClaims{
		UserID:    userID,
		PromiseID: promiseID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceMagicLink},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.magicLinkTTL)),
		},
	}
	return s.sign(c)
}

// VerifyMagicLink returns the claims of a valid magic-link token, or
// ErrInvalidToken.
func (s *TokenService) VerifyMagicLink(tokenStr string) (*MagicLinkClaims, error) {
	c := &MagicLinkClaims{}
	if err := s.parse(tokenStr, c, audienceMagicLink); err != nil {
		return nil, err
	}
	if c.UserID == "" || c.PromiseID == "" {
		return nil, fmt.Errorf("%w: missing userId or promiseId", ErrInvalidToken)
	}
	return c, nil
}

// =========================================================================
// SESSIONS
// =========================================================================

// Viewer is the identity attached to a request by a valid session.
type Viewer struct {
	UserID string
}

// IssueSession signs a 30-day session token for userID.
func (s *TokenService) IssueSession(userID string) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audienceSession},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}
	return s.sign(c)
}

// VerifySession returns the viewer for a valid session token. Any failure
// (empty, malformed, expired, wrong key or audience) yields ok == false;
// an unverifiable session is treated exactly like no session. A nil
// service verifies nothing.
func (s *TokenService) VerifySession(tokenStr string) (Viewer, bool) {
	if s == nil || tokenStr == "" {
		return Viewer{}, false
	}
	c := &jwt.RegisteredClaims{}
	if err := s.parse(tokenStr, c, audienceSession); err != nil {
		return Viewer{}, false
	}
	if c.Subject == "" {
		return Viewer{}, false
	}
	return Viewer{UserID: c.Subject}, true
}

// =========================================================================
// SHARED
// =========================================================================

func (s *TokenService) sign(c jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// parse verifies signature, algorithm, issuer, audience and expiry.
// Only HS256 is accepted, which rules out "none" and key-confusion attacks.
func (s *TokenService) parse(tokenStr string, c jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
