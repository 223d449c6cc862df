// Package auth issues and verifies the bearer tokens returned by login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pastebox/internal/domain"
)

// DefaultTTL is the lifetime of a login token.
const DefaultTTL = time.Hour

type claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// HS256 signs tokens with a shared secret.
type HS256 struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewHS256(secret, issuer string, ttl time.Duration) (*HS256, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		return nil, errors.New("jwt issuer is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be > 0")
	}
	return &HS256{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id. It returns the token and its expiry.
func (h *HS256) Issue(id Identity) (string, time.Time, error) {
	if id.UserID == uuid.Nil {
		return "", time.Time{}, errors.New("empty user id")
	}
	now := h.now()
	exp := now.Add(h.ttl)
	c := claims{
		Username: id.Username,
		Email:    id.Email,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(h.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses token and returns the identity it carries.
func (h *HS256) Verify(token string) (Identity, error) {
	var parsed claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	_, err := parser.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}
	userID, err := uuid.Parse(parsed.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: bad subject: %w", err)
	}
	role := domain.Role(parsed.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("verify token: bad role %q", parsed.Role)
	}
	return Identity{UserID: userID, Username: parsed.Username, Email: parsed.Email, Role: role}, nil
}
