package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/clientportal/portal/internal/shared"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue signs a token for userID.
func (t *TokenIssuer) Issue(userID string) (Session, Claims, error) {
	now := t.now().UTC().Truncate(time.Second)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        ulid.Make().String(),
		Subject:   userID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Session{}, Claims{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, claims, nil
}

// Parse verifies signature, algorithm, expiry, issuer and subject.
func (t *TokenIssuer) Parse(token string) (Claims, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return Claims{}, fmt.Errorf("%w: missing subject or id", shared.ErrInvalidToken)
	}
	return claims, nil
}
