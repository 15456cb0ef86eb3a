package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/deepaktammali/litellm/internal/config"
	"github.com/deepaktammali/litellm/internal/store"
)

// Role is the privilege tier attached to a caller identity.
type Role string

const (
	// RoleAdmin is the highest tier; it unlocks admin-only report endpoints.
	RoleAdmin Role = "proxy_admin"
	// RoleInternalUser is the default tier for regular management callers.
	RoleInternalUser Role = "internal_user"
)

// ParseRole maps a stored role string onto a known tier.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleInternalUser:
		return RoleInternalUser, true
	default:
		return "", false
	}
}

// Identity describes an authorized caller.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

var (
	ErrInvalidKey      = errors.New("invalid api key")
	ErrSessionDisabled = errors.New("session tokens disabled")
)

const masterKeyUserID = "default_user_id"

// Service authorizes bearer credentials: the master key, stored API keys,
// and (when configured) signed session tokens.
type Service struct {
	cfg    config.AuthConfig
	keys   store.APIKeyStore
	tokens *TokenManager
}

func NewService(cfg config.AuthConfig, keys store.APIKeyStore) (*Service, error) {
	svc := &Service{cfg: cfg, keys: keys}
	if cfg.SessionSecret != "" {
		tm, err := NewTokenManager(cfg.SessionSecret, cfg.SessionTokenTTL, "litellm-customerd")
		if err != nil {
			return nil, fmt.Errorf("build token manager: %w", err)
		}
		svc.tokens = tm
	}
	return svc, nil
}

// Authorize resolves a presented bearer token to an identity. Every failure
// collapses to ErrInvalidKey so callers cannot probe which branch rejected.
func (s *Service) Authorize(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidKey
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.MasterKey)) == 1 {
		return Identity{UserID: masterKeyUserID, Role: RoleAdmin}, nil
	}

	if prefix, secret, ok := SplitAPIKey(token); ok {
		key, err := s.keys.GetAPIKeyByPrefix(ctx, prefix)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Identity{}, ErrInvalidKey
			}
			return Identity{}, fmt.Errorf("lookup api key: %w", err)
		}
		match, err := VerifyKeySecret(secret, key.SecretHash)
		if err != nil || !match {
			return Identity{}, ErrInvalidKey
		}
		role, ok := ParseRole(key.Role)
		if !ok {
			role = RoleInternalUser
		}
		return Identity{UserID: key.UserID, Role: role}, nil
	}

	if s.tokens != nil {
		identity, err := s.tokens.Validate(token)
		if err != nil {
			return Identity{}, ErrInvalidKey
		}
		return identity, nil
	}

	return Identity{}, ErrInvalidKey
}

// IssueSessionToken mints a session JWT for an already-authorized identity.
func (s *Service) IssueSessionToken(identity Identity) (*SessionToken, error) {
	if s.tokens == nil {
		return nil, ErrSessionDisabled
	}
	return s.tokens.Generate(identity.UserID, identity.Role)
}
