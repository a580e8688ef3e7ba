package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth: bad credentials or an expired/revoked token.
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound: the backend has no such resource.
	ErrNotFound = errors.New("not found")
	// ErrBackend: any other non-2xx response, or an unreadable body.
	ErrBackend = errors.New("backend error")
	// ErrNetwork: transport failure or timeout; no response was received.
	ErrNetwork = errors.New("network error")
)

// Error carries the status code and message reported by the backend. Use
// errors.Is with the sentinels above to classify it.
type Error struct {
	Op            string
	StatusCode    int
	ServerMessage string
	Kind          error
	Err           error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.ServerMessage != "":
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.StatusCode, e.ServerMessage)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.StatusCode
	}
	return 0
}
