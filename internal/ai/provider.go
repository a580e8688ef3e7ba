// Package ai answers debate prompts on behalf of named participants. Each
// participant ("gemini", "claude", ...) resolves to a Provider through the
// Registry.
package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation handed to a provider.
type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
