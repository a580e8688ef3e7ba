package gateway

import (
	"context"
	"time"
)

// Digest is the daily summary of the user's debates.
type Digest struct {
	Date         string    `json:"date"`
	Summary      string    `json:"summary"`
	Highlights   []string  `json:"highlights"`
	SessionCount int       `json:"session_count"`
	MessageCount int       `json:"message_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// LatestDaily returns ErrNotFound when no digest was generated yet.
func (c *Client) LatestDaily(ctx context.Context) (*Digest, error) {
	var out Digest
	if err := c.get(ctx, "latest daily", "/api/v1/daily/latest", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateDaily(ctx context.Context) (*Digest, error) {
	var out Digest
	if err := c.postJSON(ctx, "generate daily", "/api/v1/daily/generate", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
