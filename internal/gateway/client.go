// Package gateway is the typed client for the debate backend. Every request
// passes through an explicit pipeline that attaches the bearer token and
// turns a 401 into a cleared identity.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger

	mu    sync.RWMutex
	hooks []func(context.Context)
}

type Option func(*clientOptions)

type clientOptions struct {
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger
	stages    []Stage
}

// WithTransport replaces the innermost transport (http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithStages adds stages between the built-in ones and the transport.
func WithStages(stages ...Stage) Option {
	return func(o *clientOptions) { o.stages = append(o.stages, stages...) }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	o := clientOptions{
		transport: http.DefaultTransport,
		timeout:   90 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		logger:  o.logger,
	}
	stages := []Stage{
		RequestID(),
		Logging(o.logger),
		BearerAuth(tokens),
		ExpireOn401(tokens, c.fireUnauthorized),
	}
	stages = append(stages, o.stages...)
	c.http = &http.Client{
		Timeout:   o.timeout,
		Transport: Chain(o.transport, stages...),
	}
	return c
}

// OnUnauthorized registers fn to run after a 401 cleared the identity.
func (c *Client) OnUnauthorized(fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Client) fireUnauthorized(ctx context.Context) {
	c.mu.RLock()
	hooks := append([]func(context.Context){}, c.hooks...)
	c.mu.RUnlock()
	c.logger.Warn("session expired, identity cleared")
	for _, h := range hooks {
		h(ctx)
	}
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: op, Kind: ErrBackend, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(op, req, out)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Op:            op,
			StatusCode:    resp.StatusCode,
			ServerMessage: serverMessage(resp.Body),
			Kind:          classify(resp.StatusCode),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: ErrBackend, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrAuth
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrBackend
	}
}

// serverMessage pulls a human readable message out of an error body: the
// "detail", "message" or "error" field when the body is JSON, else the text.
func serverMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4*1024))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, k := range []string{"detail", "message", "error"} {
			switch v := decoded[k].(type) {
			case string:
				if v != "" {
					return v
				}
			case nil:
			default:
				if b, err := json.Marshal(v); err == nil {
					return string(b)
				}
			}
		}
	}
	return text
}
