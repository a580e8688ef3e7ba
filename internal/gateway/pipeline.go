package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TokenSource is the slice of the token store the pipeline needs.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Stage wraps the next RoundTripper. Stages are explicit request/response
// steps; nothing is attached to a package-level client.
type Stage func(next http.RoundTripper) http.RoundTripper

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain builds base wrapped by stages; the first stage sees the request first.
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	rt := base
	for i := len(stages) - 1; i >= 0; i-- {
		rt = stages[i](rt)
	}
	return rt
}

type anonymousKey struct{}

// Anonymous marks ctx so the bearer stage skips the request.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with a fresh id unless one is already set.
func RequestID() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, uuid.NewString())
			return next.RoundTrip(r)
		})
	}
}

// BearerAuth attaches the stored token to every non-anonymous request.
func BearerAuth(tokens TokenSource) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if isAnonymous(r.Context()) {
				return next.RoundTrip(r)
			}
			tok, err := tokens.AccessToken(r.Context())
			if err != nil {
				if r.Body != nil {
					_ = r.Body.Close()
				}
				return nil, err
			}
			if tok == "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+tok)
			return next.RoundTrip(r)
		})
	}
}

// ExpireOn401 treats a 401 on an authenticated request as session expiry:
// the stored identity is cleared and onExpired runs before the response is
// handed back. Anonymous requests (login, signup) are left alone.
func ExpireOn401(tokens TokenSource, onExpired func(context.Context)) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(r)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if r.Header.Get("Authorization") == "" {
				return resp, nil
			}
			// the caller's ctx may already be cancelled; clearing must still happen
			ctx := context.WithoutCancel(r.Context())
			if cerr := tokens.Clear(ctx); cerr != nil {
				slog.Error("clear identity after 401 failed", "err", cerr)
			}
			if onExpired != nil {
				onExpired(ctx)
			}
			return resp, nil
		})
	}
}

// Logging records method, path, status and latency at debug level.
func Logging(logger *slog.Logger) Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get(RequestIDHeader),
				"cost", time.Since(start),
			}
			if err != nil {
				logger.Debug("backend call failed", append(attrs, "err", err)...)
				return resp, err
			}
			logger.Debug("backend call", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}
