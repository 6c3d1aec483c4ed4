package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// RoleAdmin is the only role the back office issues.
const RoleAdmin = "admin"

const (
	defaultTokenTTL = 24 * time.Hour
	defaultIssuer   = "shunharvest"
)

var (
	// ErrTokenExpired signals an admin token past its expiry.
	ErrTokenExpired = errors.New("auth: admin token expired")
	// ErrTokenInvalid signals a malformed, tampered or wrongly-signed admin token.
	ErrTokenInvalid = errors.New("auth: admin token invalid")
)

// AdminClaims is the payload of an admin bearer token.
type AdminClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 admin tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  func() time.Time
}

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides the 24 hour token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock overrides the time source, mainly for tests.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTokenIssuer returns an issuer keyed by secret.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	issuer := &TokenIssuer{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		issuer: defaultIssuer,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

// Issue signs a token for username and returns it with its expiry.
func (t *TokenIssuer) Issue(username string) (string, time.Time, error) {
	now := t.clock().UTC()
	expiresAt := now.Add(t.ttl)
	claims := AdminClaims{
		Username: username,
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses token and checks signature, algorithm, expiry and role. Expiry is checked
// against wall-clock time.
func (t *TokenIssuer) Verify(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Role != RoleAdmin || strings.TrimSpace(claims.Username) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
