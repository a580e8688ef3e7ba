// Package usage derives per-user counters and answers whether an action is
// permitted on the user's tier. Limits are enforced here, before any call to
// the backend.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/suPer8Hu/ai-debate/internal/kv"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

// ErrQuotaExceeded means the tier limit is reached and an upgrade is needed.
var ErrQuotaExceeded = errors.New("usage: tier limit reached")

const AnonymousKey = "anonymous"

type Counter string

const (
	SessionsCreated Counter = "sessionsCreated"
	MessagesSent    Counter = "messagesSent"
)

type Counters struct {
	SessionsCreated int             `json:"sessions_created"`
	MessagesSent    int             `json:"messages_sent"`
	CurrentTier     tokenstore.Tier `json:"current_tier"`
}

// Tracker is bound to one user at a time. Counters are scoped per user key
// and are never reset, including on tier changes.
type Tracker struct {
	kv     kv.Store
	policy Policy

	mu      sync.Mutex
	userKey string
	tier    tokenstore.Tier
}

func NewTracker(store kv.Store, policy Policy) *Tracker {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Tracker{kv: store, policy: policy, userKey: AnonymousKey, tier: tokenstore.TierFree}
}

// Bind switches the tracker to rec's counters, or to the anonymous counters
// when rec is nil, and resynchronizes the stored tier.
func (t *Tracker) Bind(ctx context.Context, rec *tokenstore.UserRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.userKey, t.tier = AnonymousKey, tokenstore.TierFree
	if rec != nil {
		if email := strings.ToLower(strings.TrimSpace(rec.Email)); email != "" {
			t.userKey = email
		}
		t.tier = rec.Tier
	}
	_, err := t.loadLocked(ctx)
	return err
}

// UserKey is the storage scope currently bound.
func (t *Tracker) UserKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userKey
}

func (t *Tracker) Counters(ctx context.Context) (Counters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(ctx)
}

func (t *Tracker) Limits(ctx context.Context) (Limits, error) {
	c, err := t.Counters(ctx)
	if err != nil {
		return Limits{}, err
	}
	return t.policy.For(c.CurrentTier), nil
}

func (t *Tracker) CanCreateSession(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	return c.SessionsCreated < t.policy.For(c.CurrentTier).SessionLimit, nil
}

func (t *Tracker) CanSendMessage(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	return c.MessagesSent < t.policy.For(c.CurrentTier).MessageLimit, nil
}

// Increment raises counter by amount. Call it only after the guarded action
// succeeded; there is no undo.
func (t *Tracker) Increment(ctx context.Context, counter Counter, amount int) error {
	if amount < 1 {
		return fmt.Errorf("usage: increment amount must be positive, got %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.loadLocked(ctx)
	if err != nil {
		return err
	}
	switch counter {
	case SessionsCreated:
		c.SessionsCreated += amount
	case MessagesSent:
		c.MessagesSent += amount
	default:
		return fmt.Errorf("usage: unknown counter %q", counter)
	}
	return t.saveLocked(ctx, c)
}

// FilterModels keeps the participants the current tier allows, in order and
// without duplicates. rejected lists the dropped ids.
func (t *Tracker) FilterModels(ctx context.Context, models []string) (allowed, rejected []string, err error) {
	limits, err := t.Limits(ctx)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		if limits.Allows(m) {
			allowed = append(allowed, m)
		} else {
			rejected = append(rejected, m)
		}
	}
	return allowed, rejected, nil
}

func (t *Tracker) storageKey() string {
	return "usage:" + t.userKey
}

// loadLocked reads counters, creating them lazily, and rewrites the tier when
// it diverged from the bound user's tier.
func (t *Tracker) loadLocked(ctx context.Context) (Counters, error) {
	c := Counters{CurrentTier: t.tier}
	b, err := t.kv.Get(ctx, t.storageKey())
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return c, t.saveLocked(ctx, c)
	case err != nil:
		return Counters{}, fmt.Errorf("load usage counters: %w", err)
	}

	if err := json.Unmarshal(b, &c); err != nil {
		slog.Warn("resetting malformed usage counters", "user", t.userKey, "err", err)
		c = Counters{CurrentTier: t.tier}
		return c, t.saveLocked(ctx, c)
	}
	if c.CurrentTier != t.tier {
		slog.Info("usage tier resync", "user", t.userKey, "from", c.CurrentTier, "to", t.tier)
		c.CurrentTier = t.tier
		return c, t.saveLocked(ctx, c)
	}
	return c, nil
}

func (t *Tracker) saveLocked(ctx context.Context, c Counters) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := t.kv.Set(ctx, t.storageKey(), b); err != nil {
		return fmt.Errorf("save usage counters: %w", err)
	}
	return nil
}
