package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCategory distinguishes access tokens from refresh tokens.
type TokenCategory string

const (
	CategoryAccess  TokenCategory = "access"
	CategoryRefresh TokenCategory = "refresh"
)

// Valid reports whether c is exactly one of the two known categories.
func (c TokenCategory) Valid() bool {
	return c == CategoryAccess || c == CategoryRefresh
}

// Claims describes the JWT payload.
type Claims struct {
	Category TokenCategory `json:"category"`
	UserID   int64         `json:"userId"`
	Username string        `json:"username"`
	Role     string        `json:"role"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenCodec signs and parses HS256 tokens with a single immutable key.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces time.Now, mostly for tests crossing expiry boundaries.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec around the process signing key.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("signing key must not be empty")
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	c := &TokenCodec{secret: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue builds and signs a token valid for the given duration, returning the
// compact token and its expiry. validity must be a positive whole number of
// seconds; exp - iat equals it exactly.
func (c *TokenCodec) Issue(category TokenCategory, userID int64, username, role string, validity time.Duration) (string, time.Time, error) {
	if !category.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: unknown category %q", category)
	}
	// NumericDate has second precision, so exp - iat must be a whole number of seconds.
	if validity < time.Second {
		return "", time.Time{}, fmt.Errorf("issue token: validity %s below one second", validity)
	}
	if validity%time.Second != 0 {
		return "", time.Time{}, fmt.Errorf("issue token: validity %s is not a whole number of seconds", validity)
	}

	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(validity)

	claims := &Claims{
		Category: category,
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Verify checks the signature and structure of a token. Expiry is not
// checked here; callers use IsExpired so a stale token stays distinguishable
// from a forged one.
func (c *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if !claims.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrMalformedToken, claims.Category)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: invalid validity window", ErrMalformedToken)
	}
	return claims, nil
}

// IsExpired reports whether the token's expiry has been reached. A token is
// expired at the instant now == exp.
func (c *TokenCodec) IsExpired(claims *Claims) bool {
	return !c.now().Before(claims.ExpiresAtTime())
}
