package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token   string
	cleared int
}

func (s *staticTokens) AccessToken(context.Context) (string, error) { return s.token, nil }
func (s *staticTokens) Clear(context.Context) error {
	s.cleared++
	s.token = ""
	return nil
}

func respond(status int) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("")), Request: r}, nil
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Stage {
		return func(next http.RoundTripper) http.RoundTripper {
			return roundTripFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}
	rt := Chain(respond(200), mark("a"), mark("b"), mark("c"))
	req, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBearerAuth_DoesNotMutateCallerRequest(t *testing.T) {
	var seen string
	rt := Chain(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("Authorization")
		return respond(200).RoundTrip(r)
	}), BearerAuth(&staticTokens{token: "abc"}))

	req, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", seen)
	assert.Empty(t, req.Header.Get("Authorization"))

	anon, _ := http.NewRequestWithContext(Anonymous(context.Background()), http.MethodGet, "http://x/", nil)
	_, err = rt.RoundTrip(anon)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestExpireOn401_ClearsEvenWhenContextCancelled(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	var hookCtxErr error
	rt := Chain(respond(http.StatusUnauthorized), BearerAuth(tokens), ExpireOn401(tokens, func(ctx context.Context) {
		hookCtxErr = ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://x/", nil)
	cancel()
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, tokens.cleared)
	assert.NoError(t, hookCtxErr)
}

func TestExpireOn401_IgnoresOtherStatuses(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	for _, status := range []int{200, 403, 404, 500} {
		rt := Chain(respond(status), BearerAuth(tokens), ExpireOn401(tokens, nil))
		req, _ := http.NewRequest(http.MethodGet, "http://x/", nil)
		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
	}
	assert.Zero(t, tokens.cleared)
}

type brokenTokens struct{}

func (brokenTokens) AccessToken(context.Context) (string, error) { return "", io.ErrUnexpectedEOF }
func (brokenTokens) Clear(context.Context) error                 { return nil }

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestBearerAuth_TokenReadFailureClosesBody(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader(`{"prompt":"q"}`)}
	req, err := http.NewRequest(http.MethodPost, "http://backend.test/api/v1/broadcast", body)
	require.NoError(t, err)

	rt := BearerAuth(brokenTokens{})(roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("request must not reach the transport")
		return nil, nil
	}))
	_, err = rt.RoundTrip(req)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, body.closed)
}
