package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionToken is a signed session credential with expiry metadata.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenManager mints and validates the short-lived JWTs handed to UI callers.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokenManager(secret string, ttl time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be > 0")
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}, nil
}

// Generate signs a session token carrying the caller's identity and role.
func (tm *TokenManager) Generate(userID string, role Role) (*SessionToken, error) {
	now := time.Now()
	exp := now.Add(tm.ttl)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
		"iss":  tm.issuer,
		"jti":  uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SessionToken{Token: signed, ExpiresAt: exp}, nil
}

// Validate parses a session token and returns the identity it carries.
func (tm *TokenManager) Validate(raw string) (Identity, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role, ok := ParseRole(roleStr)
	if sub == "" || !ok {
		return Identity{}, errors.New("invalid token claims")
	}
	return Identity{UserID: sub, Role: role}, nil
}
