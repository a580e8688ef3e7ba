package ai

import (
	"context"
	"fmt"
	"strings"
)

// EchoProvider answers without any model behind it. The dev backend uses it
// for participants that have no real provider configured.
type EchoProvider struct {
	Participant string
}

func NewEchoProvider(participant string) *EchoProvider {
	return &EchoProvider{Participant: participant}
}

func (p *EchoProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var prompt string
	turns := 0
	for _, m := range messages {
		if m.Role == RoleUser {
			prompt = m.Content
			turns++
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("echo: no user message")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s here (turn %d). You asked: %q\n\n", p.Participant, turns, prompt)
	b.WriteString("Key takeaways:\n")
	fmt.Fprintf(&b, "- %s restates the question\n", p.Participant)
	fmt.Fprintf(&b, "- %d words considered\n", len(strings.Fields(prompt)))
	return b.String(), nil
}
