package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/ai-debate/internal/ai"
	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/db"
	"github.com/suPer8Hu/ai-debate/internal/gateway"
	"github.com/suPer8Hu/ai-debate/internal/httpapi"
	"github.com/suPer8Hu/ai-debate/internal/kv"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var sessionLine = regexp.MustCompile(`Session ([0-9A-Z]{26}) with`)

type cli struct {
	t     *testing.T
	api   string
	store kv.Store
}

func newCLI(t *testing.T) *cli {
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
	srv := httptest.NewServer(httpapi.NewRouter(config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}, backend, logger))
	t.Cleanup(srv.Close)

	t.Setenv("RABBIT_URL", "")
	t.Setenv("TIER_POLICY_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ACTIVITY_DB_DSN", filepath.Join(t.TempDir(), "activity.db"))

	return &cli{t: t, api: srv.URL, store: kv.NewMemory()}
}

// run executes one invocation against the shared local state.
func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	root, a := newRootCmd(c.store)
	defer func() { require.NoError(c.t, a.close()) }()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--api", c.api}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err, out)
	return out
}

func TestCLI_SignupSendAndLoad(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("secret1\n", "signup", "--email", "ana@example.com", "--name", "Ana")
	assert.Contains(t, out, "Welcome, Ana! You are on the free tier.")

	out = c.mustRun("", "whoami")
	assert.Contains(t, out, "Ana <ana@example.com>, free tier")

	out = c.mustRun("", "new", "gemini", "gpt", "deepseek")
	assert.Contains(t, out, "gemini, deepseek")
	assert.Contains(t, out, "Skipped (not on your tier): gpt")
	m := sessionLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	sid := m[1]

	out = c.mustRun("", "send", "--session", sid, "is", "tea", "better", "than", "coffee?")
	assert.Contains(t, out, "== gemini ==")
	assert.Contains(t, out, "== deepseek ==")
	assert.Contains(t, out, `You asked: "is tea better than coffee?"`)
	assert.Contains(t, out, "Takeaways:")

	out = c.mustRun("", "load", sid)
	assert.Contains(t, out, "you:\nis tea better than coffee?")
	assert.Contains(t, out, "gemini:")

	out = c.mustRun("", "history")
	assert.Contains(t, out, sid)

	out = c.mustRun("", "usage")
	assert.Regexp(t, `Sessions\s+1 / 3`, out)
	assert.Regexp(t, `Messages\s+1 / 15`, out)

	out = c.mustRun("", "logout")
	assert.Contains(t, out, "Signed out.")
	out = c.mustRun("", "whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestCLI_WrongPasswordIsAuthError(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "signup", "--email", "bo@example.com", "--password", "secret1")
	c.mustRun("", "logout")

	_, err := c.run("", "login", "--email", "bo@example.com", "--password", "nope!!")
	require.Error(t, err)
	assert.Contains(t, describe(err), "Sign in again")
}

func TestCLI_QuotaSuggestsUpgrade(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "signup", "--email", "cy@example.com", "--password", "secret1")
	for i := 0; i < 3; i++ {
		c.mustRun("", "new")
	}

	_, err := c.run("", "new")
	require.Error(t, err)
	assert.Contains(t, describe(err), "debate upgrade pro")
}

func TestCLI_UpgradeFlow(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "signup", "--email", "di@example.com", "--password", "secret1")

	out := c.mustRun("", "upgrade", "pro")
	require.Contains(t, out, "Complete the payment at:")
	url := strings.TrimSpace(strings.SplitN(out, "\n", 3)[1])
	require.True(t, strings.HasPrefix(url, "http"), out)

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out = c.mustRun("", "confirm-upgrade")
	assert.Contains(t, out, "You are on the pro tier.")
	out = c.mustRun("", "usage")
	assert.Contains(t, out, "gpt")
}

func TestCLI_ChatREPL(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "signup", "--email", "ed@example.com", "--password", "secret1")

	script := strings.Join([]string{
		"first question",
		"/usage",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n")
	out := c.mustRun(script, "chat", "deepseek")
	assert.Contains(t, out, "Hi ed@example.com (free tier).")
	assert.Contains(t, out, "== deepseek ==")
	assert.Regexp(t, `Messages\s+1 / 15`, out)
	assert.Contains(t, out, "unknown command /bogus")
	assert.NotContains(t, out, "never sent")
}

func TestCLI_ChatEndsOnEOF(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "signup", "--email", "fa@example.com", "--password", "secret1")
	out := c.mustRun("", "chat")
	assert.Contains(t, out, "Session ")
}

func TestCLI_ActivityWithoutEvents(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("", "activity")
	assert.Contains(t, out, "No activity recorded for anonymous.")
}

func TestCLI_FailedCommandStillReleasesState(t *testing.T) {
	c := newCLI(t)
	t.Setenv("STATE_BACKEND", "sqlite")
	t.Setenv("STATE_PATH", filepath.Join(t.TempDir(), "state.db"))

	root, a := newRootCmd(nil)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--api", c.api, "load", "01J0000000000000000000NOPE"})
	require.Error(t, root.Execute())

	require.NotEmpty(t, a.closers, "the sqlite state store is registered for closing")
	require.NoError(t, a.close())
	assert.Empty(t, a.closers)
}

func TestRenderCheckout(t *testing.T) {
	var b bytes.Buffer
	renderCheckout(&b, &gateway.Checkout{ID: "cs_1", URL: "https://pay.example.com/cs_1"})
	assert.Contains(t, b.String(), "  https://pay.example.com/cs_1\n")

	b.Reset()
	renderCheckout(&b, &gateway.Checkout{ID: "cs_2"})
	assert.Contains(t, b.String(), "Checkout cs_2 created")
	assert.NotContains(t, b.String(), "payment at:")
	assert.Contains(t, b.String(), "debate confirm-upgrade")
}
