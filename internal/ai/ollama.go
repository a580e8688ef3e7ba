package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider answers through a local Ollama server. One model can stand
// in for several participants; the participant name goes into the system
// prompt so replies stay distinguishable.
type OllamaProvider struct {
	BaseURL     string
	Model       string
	Participant string
	Client      *http.Client
}

type ollamaChatReq struct {
	Model    string    `json:"model"`
	Messages []chatMsg `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResp struct {
	Message chatMsg `json:"message"`
	Error   string  `json:"error,omitempty"`
}

func NewOllamaProvider(baseURL, model, participant string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       model,
		Participant: participant,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := messages
	if p.Participant != "" {
		msgs = append([]Message{{
			Role:    RoleSystem,
			Content: debaterPrompt(p.Participant),
		}}, messages...)
	}

	var decoded ollamaChatResp
	req := ollamaChatReq{Model: p.Model, Messages: toChatMsgs(msgs)}
	if err := postJSON(ctx, p.Client, "ollama", p.BaseURL+"/api/chat", nil, req, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	return decoded.Message.Content, nil
}

func debaterPrompt(participant string) string {
	return "You are " + participant + ", one of several AI participants in a debate. " +
		"Answer the user's prompt in your own voice, then finish with a \"Key takeaways:\" " +
		"section of short bullet points."
}
