// Package token issues and verifies short-lived download tokens.
//
// A token is an HS256 JWT whose subject is an asset id. Verification is
// stateless: a token is valid until it expires and cannot be revoked.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bitfsorg/assetvault/errkind"
)

// DefaultTTL is used when neither the caller nor the configuration set a TTL.
const DefaultTTL = 10 * time.Minute

var (
	// ErrMissingSecret indicates the signing secret is not configured.
	ErrMissingSecret = errors.New("token: signing secret not configured")

	// ErrMissingToken indicates no token was presented.
	ErrMissingToken = errors.New("token: missing token")

	// ErrInvalidToken indicates a malformed token or a bad signature.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrExpiredToken indicates the token's expiry has passed.
	ErrExpiredToken = errors.New("token: expired token")

	// ErrAssetMismatch indicates a valid token scoped to a different asset.
	ErrAssetMismatch = errors.New("token: token does not grant access to this asset")
)

// Claims are the verified contents of a token.
type Claims struct {
	AssetID   string
	ExpiresAt time.Time
}

// Service signs and verifies tokens with a secret that is distinct from the
// encryption master key.
type Service struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a token service. A non-positive defaultTTL selects DefaultTTL.
func NewService(secret []byte, defaultTTL time.Duration, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errkind.Configuration.Wrap(ErrMissingSecret)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	s := &Service{
		secret:     append([]byte(nil), secret...),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultTTL returns the TTL applied when Issue is called with ttl <= 0.
func (s *Service) DefaultTTL() time.Duration { return s.defaultTTL }

// Issue signs a token for assetID valid for ttl, or the default TTL when
// ttl <= 0. It returns the token and its expiry.
func (s *Service) Issue(assetID string, ttl time.Duration) (string, time.Time, error) {
	if assetID == "" {
		return "", time.Time{}, errkind.Validation.New("token: empty asset id")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	// exp has whole-second precision; round up so a short ttl never yields
	// a token that is already expired.
	expiresAt := now.Add(ttl)
	if whole := expiresAt.Truncate(time.Second); whole.Before(expiresAt) {
		expiresAt = whole.Add(time.Second)
	}
	claims := jwt.RegisteredClaims{
		Subject:   assetID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of tok and returns its claims.
func (s *Service) Verify(tok string) (*Claims, error) {
	if tok == "" {
		return nil, errkind.Token.Wrap(ErrMissingToken)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errkind.Token.Wrap(fmt.Errorf("%w: %w", ErrExpiredToken, err))
	case err != nil:
		return nil, errkind.Token.Wrap(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	case claims.Subject == "":
		return nil, errkind.Token.Wrap(fmt.Errorf("%w: missing subject", ErrInvalidToken))
	}

	return &Claims{AssetID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// VerifyFor verifies tok and checks that it was issued for assetID.
// Tokens are not transferable between assets.
func (s *Service) VerifyFor(tok, assetID string) (*Claims, error) {
	claims, err := s.Verify(tok)
	if err != nil {
		return nil, err
	}
	if claims.AssetID != assetID {
		return nil, errkind.Token.Wrap(fmt.Errorf("%w: token for %s, requested %s", ErrAssetMismatch, claims.AssetID, assetID))
	}
	return claims, nil
}
