// Package debate turns user intents into gated backend calls and state
// transitions: quota check, then the API call, then the conversation update.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/suPer8Hu/ai-debate/internal/activity"
	"github.com/suPer8Hu/ai-debate/internal/common"
	"github.com/suPer8Hu/ai-debate/internal/conversation"
	"github.com/suPer8Hu/ai-debate/internal/gateway"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

// Backend is the part of gateway.Client the service calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (*gateway.AuthResult, error)
	Signup(ctx context.Context, email, password, fullName string) (*gateway.AuthResult, error)
	CreateSession(ctx context.Context, sessionID string, participants []string) error
	LoadSession(ctx context.Context, sessionID string) (*conversation.Session, error)
	Broadcast(ctx context.Context, sessionID, prompt string, participants []string) ([]conversation.Message, error)
	ListSessions(ctx context.Context) ([]gateway.SessionSummary, error)
	LatestDaily(ctx context.Context) (*gateway.Digest, error)
	GenerateDaily(ctx context.Context) (*gateway.Digest, error)
	CreateCheckout(ctx context.Context, tier tokenstore.Tier) (*gateway.Checkout, error)
	PaymentStatus(ctx context.Context) (tokenstore.Tier, error)
}

type Service struct {
	backend  Backend
	tokens   *tokenstore.Store
	tracker  *usage.Tracker
	state    *conversation.Store
	activity activity.Publisher
	logger   *slog.Logger
	now      func() time.Time

	pending pending
}

type Option func(*Service)

func WithActivity(p activity.Publisher) Option {
	return func(s *Service) { s.activity = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(backend Backend, tokens *tokenstore.Store, tracker *usage.Tracker, state *conversation.Store, opts ...Option) *Service {
	s := &Service{
		backend:  backend,
		tokens:   tokens,
		tracker:  tracker,
		state:    state,
		activity: activity.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if hooked, ok := backend.(interface{ OnUnauthorized(func(context.Context)) }); ok {
		hooked.OnUnauthorized(s.signedOut)
	}
	state.Subscribe(s.publishEvent)
	return s
}

// Restore binds the persisted identity, dropping it when its token expired.
func (s *Service) Restore(ctx context.Context) (*tokenstore.UserRecord, error) {
	rec, err := s.tokens.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec != nil && tokenstore.TokenExpired(rec.AccessToken, s.now()) {
		s.logger.Info("stored token expired, signing out", "email", rec.Email)
		if err := s.tokens.Clear(ctx); err != nil {
			return nil, err
		}
		rec = nil
	}
	if err := s.tracker.Bind(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) CurrentUser(ctx context.Context) (*tokenstore.UserRecord, error) {
	return s.tokens.Load(ctx)
}

// Login leaves persisted state untouched when the backend rejects it.
func (s *Service) Login(ctx context.Context, email, password string) (*tokenstore.UserRecord, error) {
	if err := s.pending.begin(FamilyAuth); err != nil {
		return nil, err
	}
	defer s.pending.end(FamilyAuth)

	email = normalizeEmail(email)
	res, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, email, res)
}

func (s *Service) Signup(ctx context.Context, email, password, fullName string) (*tokenstore.UserRecord, error) {
	if err := s.pending.begin(FamilyAuth); err != nil {
		return nil, err
	}
	defer s.pending.end(FamilyAuth)

	email = normalizeEmail(email)
	res, err := s.backend.Signup(ctx, email, password, strings.TrimSpace(fullName))
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, email, res)
}

func (s *Service) signedIn(ctx context.Context, email string, res *gateway.AuthResult) (*tokenstore.UserRecord, error) {
	rec := tokenstore.UserRecord{
		Email:       email,
		DisplayName: res.UserName,
		Tier:        tokenstore.ParseTier(res.UserTier),
		AccessToken: res.AccessToken,
	}
	if rec.DisplayName == "" {
		rec.DisplayName = email
	}
	if err := s.tokens.Save(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.tracker.Bind(ctx, &rec); err != nil {
		return nil, err
	}
	s.state.Reset()
	s.logger.Info("signed in", "email", rec.Email, "tier", rec.Tier)
	return &rec, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	s.signedOut(ctx)
	return nil
}

// signedOut returns the client to its unauthenticated state. It also runs
// when the gateway saw a 401, after the identity was cleared.
func (s *Service) signedOut(ctx context.Context) {
	if err := s.tracker.Bind(ctx, nil); err != nil {
		s.logger.Error("rebind usage tracker failed", "err", err)
	}
	s.state.Reset()
}

type NewSessionResult struct {
	SessionID    string
	Participants []string
	// Rejected lists requested participants the tier does not allow.
	Rejected []string
}

// NewSession checks the session quota before anything else; when the limit
// is reached the backend is never called.
func (s *Service) NewSession(ctx context.Context, participants []string) (*NewSessionResult, error) {
	if err := s.pending.begin(FamilySessionCreate); err != nil {
		return nil, err
	}
	defer s.pending.end(FamilySessionCreate)

	if err := s.gate(ctx, "create session", s.tracker.CanCreateSession, func(l usage.Limits) int { return l.SessionLimit }); err != nil {
		return nil, err
	}

	if len(participants) == 0 {
		limits, err := s.tracker.Limits(ctx)
		if err != nil {
			return nil, err
		}
		participants = limits.AllowedModels
	}
	allowed, rejected, err := s.tracker.FilterModels(ctx, participants)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w (requested %s)", ErrNoParticipants, strings.Join(rejected, ", "))
	}

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	if err := s.backend.CreateSession(ctx, sid, allowed); err != nil {
		return nil, err
	}
	if err := s.tracker.Increment(ctx, usage.SessionsCreated, 1); err != nil {
		return nil, err
	}
	s.state.Dispatch(conversation.SessionCreated{SessionID: sid, Participants: allowed})

	return &NewSessionResult{SessionID: sid, Participants: allowed, Rejected: rejected}, nil
}

func (s *Service) LoadSession(ctx context.Context, sessionID string) (*conversation.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	sess, err := s.backend.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st := s.state.Dispatch(conversation.SessionLoaded{Session: *sess})
	return st.Active, nil
}

// Send broadcasts prompt to the active session's participants and appends
// the prompt and the replies. The counter moves only after a successful send.
func (s *Service) Send(ctx context.Context, prompt string) ([]conversation.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	active := s.state.Snapshot().Active
	if active == nil {
		return nil, ErrNoActiveSession
	}

	if err := s.pending.begin(FamilyBroadcast); err != nil {
		return nil, err
	}
	defer s.pending.end(FamilyBroadcast)

	if err := s.gate(ctx, "send message", s.tracker.CanSendMessage, func(l usage.Limits) int { return l.MessageLimit }); err != nil {
		return nil, err
	}

	sid := active.ID
	sent := conversation.Message{Role: conversation.RoleUser, Content: prompt, Timestamp: s.now()}
	replies, err := s.backend.Broadcast(ctx, sid, prompt, active.Participants)
	if err != nil {
		return nil, err
	}

	s.state.Dispatch(conversation.MessagesAppended{
		SessionID: sid,
		Messages:  append([]conversation.Message{sent}, replies...),
	})
	if err := s.tracker.Increment(ctx, usage.MessagesSent, 1); err != nil {
		return nil, err
	}
	return replies, nil
}

type ParticipantResponse struct {
	Model    string
	Answered bool
	Message  conversation.Message
}

// Responses lists the latest answer of each participant of the active
// session, in participant order.
func (s *Service) Responses() []ParticipantResponse {
	st := s.state.Snapshot()
	if st.Active == nil {
		return nil
	}
	out := make([]ParticipantResponse, 0, len(st.Active.Participants))
	for _, m := range st.Active.Participants {
		msg, ok := st.LatestResponseFor(m)
		if !ok {
			msg = conversation.Message{Role: conversation.RoleAssistant, AIName: m, Content: conversation.NoResponseYet}
		}
		out = append(out, ParticipantResponse{Model: m, Answered: ok, Message: msg})
	}
	return out
}

// History returns the user's sessions, most recently active first.
func (s *Service) History(ctx context.Context) ([]gateway.SessionSummary, error) {
	list, err := s.backend.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].LastActive.After(list[j].LastActive) })
	return list, nil
}

// Daily returns the latest digest, generating one first when asked to.
func (s *Service) Daily(ctx context.Context, generate bool) (*gateway.Digest, error) {
	if generate {
		return s.backend.GenerateDaily(ctx)
	}
	return s.backend.LatestDaily(ctx)
}

// Upgrade starts the payment flow and returns where to send the user.
func (s *Service) Upgrade(ctx context.Context, tier tokenstore.Tier) (*gateway.Checkout, error) {
	if !tier.Valid() || tier == tokenstore.TierFree {
		return nil, fmt.Errorf("cannot upgrade to tier %q", tier)
	}
	rec, err := s.tokens.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotSignedIn
	}
	if rec.Tier == tier {
		return nil, fmt.Errorf("already on the %s tier", tier)
	}
	return s.backend.CreateCheckout(ctx, tier)
}

// ConfirmUpgrade asks the backend which tier the payment processor
// confirmed and replaces the stored record when it changed. Consumed quota
// is kept.
func (s *Service) ConfirmUpgrade(ctx context.Context) (*tokenstore.UserRecord, error) {
	rec, err := s.tokens.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotSignedIn
	}
	tier, err := s.backend.PaymentStatus(ctx)
	if err != nil {
		return nil, err
	}
	if tier == rec.Tier {
		return rec, nil
	}

	prev := rec.Tier
	updated := *rec
	updated.Tier = tier
	if err := s.tokens.Save(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.tracker.Bind(ctx, &updated); err != nil {
		return nil, err
	}
	s.publish(ctx, activity.Activity{Type: activity.TierChanged, Detail: string(prev) + "->" + string(tier)})
	return &updated, nil
}

func (s *Service) Usage(ctx context.Context) (usage.Counters, usage.Limits, error) {
	c, err := s.tracker.Counters(ctx)
	if err != nil {
		return usage.Counters{}, usage.Limits{}, err
	}
	l, err := s.tracker.Limits(ctx)
	return c, l, err
}

// Pending reports whether an operation of family f is outstanding.
func (s *Service) Pending(f Family) bool {
	return s.pending.is(f)
}

func (s *Service) State() conversation.State {
	return s.state.Snapshot()
}

func (s *Service) gate(ctx context.Context, action string, allowed func(context.Context) (bool, error), limit func(usage.Limits) int) error {
	ok, err := allowed(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	c, err := s.tracker.Counters(ctx)
	if err != nil {
		return err
	}
	l, err := s.tracker.Limits(ctx)
	if err != nil {
		return err
	}
	return &UpgradeRequiredError{Action: action, Tier: c.CurrentTier, Limit: limit(l)}
}

func (s *Service) publishEvent(e conversation.Event, st conversation.State) {
	a := activity.Activity{SessionID: st.ActiveID()}
	switch ev := e.(type) {
	case conversation.SessionCreated:
		a.Type = activity.SessionCreated
		a.Count = len(ev.Participants)
	case conversation.SessionLoaded:
		a.Type = activity.SessionLoaded
		a.Count = len(ev.Session.Messages)
	case conversation.MessagesAppended:
		if ev.SessionID != st.ActiveID() {
			return
		}
		a.Type = activity.MessagesAppended
		a.Count = len(ev.Messages)
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.publish(ctx, a)
}

func (s *Service) publish(ctx context.Context, a activity.Activity) {
	a.UserKey = s.tracker.UserKey()
	if a.At.IsZero() {
		a.At = s.now()
	}
	if err := s.activity.Publish(ctx, a); err != nil {
		s.logger.Warn("publish activity failed", "type", a.Type, "err", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
