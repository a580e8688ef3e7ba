package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenRouterModels maps debate participants to OpenRouter model ids.
var DefaultOpenRouterModels = map[string]string{
	"gpt":      "openai/gpt-4o-mini",
	"claude":   "anthropic/claude-3.5-haiku",
	"gemini":   "google/gemini-2.0-flash-001",
	"deepseek": "deepseek/deepseek-chat",
	"llama":    "meta-llama/llama-3.1-8b-instruct",
}

type OpenRouterProvider struct {
	BaseURL     string
	APIKey      string
	Model       string
	Participant string
	AppName     string
	Client      *http.Client
}

type openRouterChatReq struct {
	Model    string    `json:"model"`
	Messages []chatMsg `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, participant string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		Model:       model,
		Participant: participant,
		AppName:     "ai-debate",
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("openrouter: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("openrouter: model is required")
	}

	msgs := append([]Message{{Role: RoleSystem, Content: debaterPrompt(p.Participant)}}, messages...)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.APIKey)
	if p.AppName != "" {
		header.Set("X-Title", p.AppName)
	}

	var decoded openRouterChatResp
	req := openRouterChatReq{Model: model, Messages: toChatMsgs(msgs)}
	if err := postJSON(ctx, p.Client, "openrouter", p.BaseURL+"/chat/completions", header, req, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}
