// Package activity describes usage events emitted by the client: sessions
// created and loaded, messages appended. They feed an audit trail of quota
// consumption outside the device.
package activity

import (
	"context"
	"time"
)

type Type string

const (
	SessionCreated   Type = "session_created"
	SessionLoaded    Type = "session_loaded"
	MessagesAppended Type = "messages_appended"
	TierChanged      Type = "tier_changed"
)

type Activity struct {
	Type      Type      `json:"type"`
	UserKey   string    `json:"user_key"`
	SessionID string    `json:"session_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, a Activity) error
}

// Nop drops everything; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Activity) error { return nil }
