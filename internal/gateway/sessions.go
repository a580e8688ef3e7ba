package gateway

import (
	"context"
	"net/url"
	"time"

	"github.com/suPer8Hu/ai-debate/internal/conversation"
)

type createSessionReq struct {
	SessionID    string   `json:"session_id"`
	Participants []string `json:"participants"`
}

func (c *Client) CreateSession(ctx context.Context, sessionID string, participants []string) error {
	return c.postJSON(ctx, "create session", "/api/v1/session", createSessionReq{
		SessionID:    sessionID,
		Participants: participants,
	}, nil)
}

// LoadSession returns ErrNotFound when the backend has no such session.
func (c *Client) LoadSession(ctx context.Context, sessionID string) (*conversation.Session, error) {
	var out conversation.Session
	if err := c.get(ctx, "load session", "/api/v1/session/"+url.PathEscape(sessionID), &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = sessionID
	}
	normalize(out.Messages, time.Now())
	return &out, nil
}

type broadcastReq struct {
	SessionID    string   `json:"session_id"`
	Prompt       string   `json:"prompt"`
	Participants []string `json:"participants"`
}

type broadcastResp struct {
	Messages []conversation.Message `json:"messages"`
}

// Broadcast sends prompt to every participant. The fan-out happens on the
// backend; the client only receives the resulting assistant messages.
func (c *Client) Broadcast(ctx context.Context, sessionID, prompt string, participants []string) ([]conversation.Message, error) {
	var out broadcastResp
	if err := c.postJSON(ctx, "broadcast", "/api/v1/broadcast", broadcastReq{
		SessionID:    sessionID,
		Prompt:       prompt,
		Participants: participants,
	}, &out); err != nil {
		return nil, err
	}
	for i := range out.Messages {
		if out.Messages[i].Role == "" {
			out.Messages[i].Role = conversation.RoleAssistant
		}
	}
	normalize(out.Messages, time.Now())
	return out.Messages, nil
}

type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	LastActive time.Time `json:"last_active"`
}

type listSessionsResp struct {
	Sessions []SessionSummary `json:"sessions"`
}

func (c *Client) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var out listSessionsResp
	if err := c.get(ctx, "list sessions", "/api/v1/history", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// normalize stamps messages the backend sent without a timestamp.
func normalize(msgs []conversation.Message, now time.Time) {
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
	}
}
