package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrBadToken     = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoSecret     = errors.New("JWT secret is not configured")
)

type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue returns a signed token for the session and its expiry.
func (ti *TokenIssuer) Issue(userID, role, sessionID string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	c := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Parse verifies signature and expiry.
func (ti *TokenIssuer) Parse(raw string) (*Claims, error) {
	return ti.parse(raw, jwt.WithExpirationRequired(), jwt.WithTimeFunc(ti.now))
}

// ParseSignature verifies only the signature, so an expired token still
// identifies its session.
func (ti *TokenIssuer) ParseSignature(raw string) (*Claims, error) {
	return ti.parse(raw, jwt.WithoutClaimsValidation())
}

func (ti *TokenIssuer) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	if raw == "" {
		return nil, ErrBadToken
	}
	// block alg confusion
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrBadToken
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" || c.SessionID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}
