package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/ai-debate/internal/ai"
	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/conversation"
	"github.com/suPer8Hu/ai-debate/internal/db"
	"github.com/suPer8Hu/ai-debate/internal/debate"
	"github.com/suPer8Hu/ai-debate/internal/gateway"
	"github.com/suPer8Hu/ai-debate/internal/kv"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	srv     *httptest.Server
	gdb     *gorm.DB
	tokens  *tokenstore.Store
	tracker *usage.Tracker
	svc     *debate.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	repo := chat.NewRepo(gdb)
	require.NoError(t, repo.Migrate())

	reg := ai.NewRegistry()
	reg.SetFallback(func(ctx context.Context, participant string) (ai.Provider, error) {
		return ai.NewEchoProvider(participant), nil
	})
	backend := chat.NewService(repo, reg, usage.DefaultPolicy(), 20, logger)

	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	srv := httptest.NewServer(NewRouter(cfg, backend, logger))
	t.Cleanup(srv.Close)

	mem := kv.NewMemory()
	tokens := tokenstore.New(mem)
	tracker := usage.NewTracker(mem, usage.DefaultPolicy())
	client := gateway.New(srv.URL, tokens, gateway.WithLogger(logger), gateway.WithTimeout(5*time.Second))
	svc := debate.NewService(client, tokens, tracker, conversation.NewStore(), debate.WithLogger(logger))

	return &env{srv: srv, gdb: gdb, tokens: tokens, tracker: tracker, svc: svc}
}

func TestDebateFlow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	rec, err := e.svc.Signup(ctx, "Ana@Example.com", "secret1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.DisplayName)
	assert.Equal(t, tokenstore.TierFree, rec.Tier)

	created, err := e.svc.NewSession(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini", "deepseek"}, created.Participants)

	replies, err := e.svc.Send(ctx, "Is Go fun?")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "gemini", replies[0].AIName)
	assert.Equal(t, []string{"gemini restates the question", "3 words considered"}, replies[0].KeyTakeaways)

	for _, r := range e.svc.Responses() {
		assert.True(t, r.Answered, r.Model)
	}

	history, err := e.svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, created.SessionID, history[0].SessionID)

	loaded, err := e.svc.LoadSession(ctx, created.SessionID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, conversation.RoleUser, loaded.Messages[0].Role)

	_, err = e.svc.Daily(ctx, false)
	require.ErrorIs(t, err, gateway.ErrNotFound)
	digest, err := e.svc.Daily(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, digest.MessageCount)
	assert.Len(t, digest.Highlights, 4)

	c, _, err := e.svc.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.SessionsCreated)
	assert.Equal(t, 1, c.MessagesSent)
}

func TestUpgrade_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.Signup(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	_, err = e.svc.NewSession(ctx, []string{"claude"})
	require.ErrorIs(t, err, debate.ErrNoParticipants)

	co, err := e.svc.Upgrade(ctx, tokenstore.TierPro)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(co.URL, e.srv.URL))

	rec, err := e.svc.ConfirmUpgrade(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.TierFree, rec.Tier, "not paid yet")

	resp, err := http.Get(co.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, err = e.svc.ConfirmUpgrade(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokenstore.TierPro, rec.Tier)

	created, err := e.svc.NewSession(ctx, []string{"claude", "gpt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "gpt"}, created.Participants)
}

func TestLogin_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.Signup(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	require.NoError(t, e.svc.Logout(ctx))

	_, err = e.svc.Login(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, gateway.ErrAuth)
	assert.Equal(t, http.StatusUnauthorized, gateway.StatusCode(err))
	rec, err := e.svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = e.svc.Signup(ctx, "ana@example.com", "secret1", "Ana")
	require.ErrorIs(t, err, gateway.ErrAuth)
	assert.Equal(t, http.StatusConflict, gateway.StatusCode(err))

	rec, err = e.svc.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", rec.Email)
	assert.Equal(t, "ana@example.com", e.tracker.UserKey())
}

func TestRejectedToken_SignsOut(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.tokens.Save(ctx, tokenstore.UserRecord{
		Email: "ana@example.com", DisplayName: "Ana", Tier: tokenstore.TierFree, AccessToken: "forged",
	}))
	_, err := e.svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", e.tracker.UserKey())

	_, err = e.svc.History(ctx)
	require.ErrorIs(t, err, gateway.ErrAuth)

	rec, err := e.tokens.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, usage.AnonymousKey, e.tracker.UserKey())
}

func TestFreeQuota_StopsBeforeBackend(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.Signup(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := e.svc.NewSession(ctx, []string{"gemini"})
		require.NoError(t, err)
	}

	_, err = e.svc.NewSession(ctx, []string{"gemini"})
	require.ErrorIs(t, err, usage.ErrQuotaExceeded)

	var n int64
	require.NoError(t, e.gdb.Model(&chat.Session{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}

func TestRouter_ErrorShapes(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/api/v1/history")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, string(body))

	resp, err = http.Get(e.srv.URL + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(e.srv.URL + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{JWTSecret: "test-secret", CORSOrigins: []string{"http://localhost:3000"}}
	srv := httptest.NewServer(NewRouter(cfg, nil, logger))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/broadcast", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
