// Package tokenstore persists the signed-in user's identity and entitlement
// record. It is the single source of the bearer token for outgoing calls.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suPer8Hu/ai-debate/internal/kv"
)

const userKey = "auth:user"

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps backend tier strings onto a Tier. Unknown values fall back
// to free so a new backend tier never grants more than the lowest limits.
func ParseTier(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro || t == TierEnterprise
}

type UserRecord struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Tier        Tier   `json:"tier"`
	AccessToken string `json:"access_token"`
}

type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Load returns nil when no record is stored or the stored payload is
// unreadable. Only failures of the backing store are returned as errors.
func (s *Store) Load(ctx context.Context) (*UserRecord, error) {
	b, err := s.kv.Get(ctx, userKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user record: %w", err)
	}

	var rec UserRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		slog.Warn("discarding malformed user record", "err", err)
		return nil, nil
	}
	if rec.AccessToken == "" || !rec.Tier.Valid() {
		slog.Warn("discarding incomplete user record", "email", rec.Email)
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) Save(ctx context.Context, rec UserRecord) error {
	if rec.AccessToken == "" {
		return errors.New("save user record: access token is required")
	}
	if !rec.Tier.Valid() {
		return fmt.Errorf("save user record: invalid tier %q", rec.Tier)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, userKey, b); err != nil {
		return fmt.Errorf("save user record: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, userKey); err != nil {
		return fmt.Errorf("clear user record: %w", err)
	}
	return nil
}

// AccessToken returns the stored bearer token or "" when signed out.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	rec, err := s.Load(ctx)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// TokenExpired reports whether a JWT bearer token carries an exp claim in the
// past. The signature is not checked; the backend stays the authority and a
// 401 still clears the record. Tokens that are not JWTs never expire here.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
