package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/suPer8Hu/ai-debate/internal/ai"
	"github.com/suPer8Hu/ai-debate/internal/auth"
	"github.com/suPer8Hu/ai-debate/internal/common"
	"github.com/suPer8Hu/ai-debate/internal/conversation"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrModelNotAllowed: the user's tier does not include a participant.
	ErrModelNotAllowed = errors.New("model not allowed on tier")
	ErrProvider        = errors.New("participant failed to answer")
)

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	policy            usage.Policy
	contextWindowSize int
	logger            *slog.Logger
	now               func() time.Time
}

func NewService(repo *Repo, registry *ai.Registry, policy usage.Policy, contextWindowSize int, logger *slog.Logger) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	if policy == nil {
		policy = usage.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:              repo,
		registry:          registry,
		policy:            policy,
		contextWindowSize: contextWindowSize,
		logger:            logger,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// users

func (s *Service) Signup(ctx context.Context, email, password, fullName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || len(password) < 6 {
		return nil, fmt.Errorf("%w: a valid email and a password of at least 6 characters are required", ErrInvalidInput)
	}

	n, err := s.repo.CountUsersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Tier:         tokenstore.TierFree,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if IsDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uint64) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// sessions

// CreateSession stores a session under the id the client generated, or a
// fresh ULID when none was sent.
func (s *Service) CreateSession(ctx context.Context, userID uint64, sessionID string, participants []string) (*Session, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	participants = dedupe(participants)
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", ErrInvalidInput)
	}
	limits := s.policy.For(u.Tier)
	for _, p := range participants {
		if !limits.Allows(p) {
			return nil, fmt.Errorf("%w: %s on %s", ErrModelNotAllowed, p, u.Tier)
		}
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		if sessionID, err = common.NewULID(); err != nil {
			return nil, err
		}
	}
	if len(sessionID) > 26 {
		return nil, fmt.Errorf("%w: session id too long", ErrInvalidInput)
	}

	sess := &Session{
		SessionID:    sessionID,
		UserID:       userID,
		Participants: strings.Join(participants, ","),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		if IsDuplicate(err) {
			return nil, fmt.Errorf("%w: session id already used", ErrInvalidInput)
		}
		return nil, err
	}
	return sess, nil
}

// sessionForUser hides other users' sessions behind ErrRecordNotFound.
func (s *Service) sessionForUser(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, userID uint64, sessionID string) (*conversation.Session, error) {
	sess, err := s.sessionForUser(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	out := &conversation.Session{
		ID:           sess.SessionID,
		Participants: sess.ParticipantList(),
		Messages:     make([]conversation.Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toConversation(m))
	}
	return out, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID)
}

// Broadcast asks every participant for an answer concurrently. Nothing is
// stored unless all of them answered; replies come back in participant order.
func (s *Service) Broadcast(ctx context.Context, userID uint64, sessionID, prompt string, participants []string) ([]conversation.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	sess, err := s.sessionForUser(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	targets, err := pickParticipants(sess.ParticipantList(), participants)
	if err != nil {
		return nil, err
	}

	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, sessionID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}

	replies := make([]string, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range targets {
		i, name := i, name
		g.Go(func() error {
			provider, err := s.registry.Get(gctx, name)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrProvider, name, err)
			}
			start := time.Now()
			reply, err := provider.Chat(gctx, historyFor(name, recentDesc, prompt))
			if err != nil {
				s.logger.Warn("participant failed", "participant", name, "session_id", sessionID, "cost", time.Since(start), "err", err)
				return fmt.Errorf("%w: %s: %v", ErrProvider, name, err)
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]*Message, 0, len(targets)+1)
	rows = append(rows, &Message{SessionID: sessionID, UserID: userID, Role: string(conversation.RoleUser), Content: prompt, CreatedAt: now})
	for i, name := range targets {
		rows = append(rows, &Message{
			SessionID:    sessionID,
			UserID:       userID,
			Role:         string(conversation.RoleAssistant),
			AIName:       name,
			Content:      replies[i],
			KeyTakeaways: strings.Join(ExtractTakeaways(replies[i]), "\n"),
			CreatedAt:    now,
		})
	}
	if err := s.repo.AppendTurn(ctx, sess, rows); err != nil {
		return nil, err
	}

	out := make([]conversation.Message, 0, len(targets))
	for _, m := range rows[1:] {
		out = append(out, toConversation(*m))
	}
	return out, nil
}

// historyFor builds what one participant sees: user turns and its own
// earlier answers, oldest first, then the new prompt.
func historyFor(name string, recentDesc []Message, prompt string) []ai.Message {
	out := make([]ai.Message, 0, len(recentDesc)+1)
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		switch {
		case m.Role == string(conversation.RoleUser):
			out = append(out, ai.Message{Role: ai.RoleUser, Content: m.Content})
		case m.AIName == name:
			out = append(out, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
		}
	}
	return append(out, ai.Message{Role: ai.RoleUser, Content: prompt})
}

// pickParticipants keeps the requested subset of the session's participants,
// or all of them when none were requested.
func pickParticipants(session, requested []string) ([]string, error) {
	requested = dedupe(requested)
	if len(requested) == 0 {
		return session, nil
	}
	in := make(map[string]bool, len(session))
	for _, p := range session {
		in[p] = true
	}
	for _, p := range requested {
		if !in[p] {
			return nil, fmt.Errorf("%w: %s is not a participant of this session", ErrInvalidInput, p)
		}
	}
	return requested, nil
}

// daily digest

func (s *Service) LatestDigest(ctx context.Context, userID uint64) (*Digest, error) {
	return s.repo.LatestDigest(ctx, userID)
}

// GenerateDigest summarizes today's (UTC) activity and replaces any digest
// already generated today.
func (s *Service) GenerateDigest(ctx context.Context, userID uint64) (*Digest, error) {
	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	act, err := s.repo.ActivitySince(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	highlights := act.Takeaways
	if len(highlights) > maxTakeaways {
		highlights = highlights[:maxTakeaways]
	}
	summary := "No debates today."
	if act.MessageCount > 0 {
		summary = fmt.Sprintf("%d prompts across %d sessions today.", act.MessageCount, act.SessionCount)
	}

	d := &Digest{
		UserID:       userID,
		Date:         day.Format(time.DateOnly),
		Summary:      summary,
		Highlights:   strings.Join(highlights, "\n"),
		SessionCount: int(act.SessionCount),
		MessageCount: int(act.MessageCount),
		GeneratedAt:  now,
	}
	if err := s.repo.UpsertDigest(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// payments

func (s *Service) CreateCheckout(ctx context.Context, userID uint64, tier tokenstore.Tier) (*Checkout, error) {
	if !tier.Valid() || tier == tokenstore.TierFree {
		return nil, fmt.Errorf("%w: cannot purchase tier %q", ErrInvalidInput, tier)
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Tier == tier {
		return nil, fmt.Errorf("%w: already on the %s tier", ErrInvalidInput, tier)
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	c := &Checkout{ID: id, UserID: userID, Tier: tier, Status: CheckoutPending}
	if err := s.repo.CreateCheckout(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CompleteCheckout(ctx context.Context, id string) (*Checkout, error) {
	c, err := s.repo.CompleteCheckout(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("checkout completed", "checkout_id", c.ID, "user_id", c.UserID, "tier", c.Tier)
	return c, nil
}

func (s *Service) PaymentStatus(ctx context.Context, userID uint64) (tokenstore.Tier, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Tier, nil
}

func toConversation(m Message) conversation.Message {
	return conversation.Message{
		Role:         conversation.Role(m.Role),
		AIName:       m.AIName,
		Content:      m.Content,
		Timestamp:    m.CreatedAt,
		KeyTakeaways: m.TakeawayList(),
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
