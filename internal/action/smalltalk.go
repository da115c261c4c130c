package action

import (
	"context"
	"fmt"
	"strings"

	chat "github.com/sashabaranov/go-openai"
)

const smallTalkPrompt = "You are Nex, a friendly desktop voice assistant. Answer in one or two short sentences."

// SmallTalk answers greetings itself and hands anything else to an optional
// chat model.
type SmallTalk struct {
	client *chat.Client
	model  string
}

// NewSmallTalk builds a responder. A nil client disables the chat model.
func NewSmallTalk(client *chat.Client, model string) *SmallTalk {
	return &SmallTalk{client: client, model: model}
}

// NewChatClient builds a client for an OpenAI-compatible endpoint.
func NewChatClient(apiKey, baseURL string, httpClient chat.HTTPDoer) *chat.Client {
	cfg := chat.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return chat.NewClientWithConfig(cfg)
}

func (s *SmallTalk) Reply(ctx context.Context, req Request) (string, error) {
	text := strings.ToLower(req.Text)

	switch {
	case strings.Contains(text, "how are you"):
		return "I'm a program, always ready to assist!", nil
	case containsAny(text, "hello", "hi", "hey"):
		return "Hello! How can I help you?", nil
	}

	if s == nil || s.client == nil || strings.TrimSpace(req.Text) == "" {
		return NotHandled, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, chat.ChatCompletionRequest{
		Model: s.model,
		Messages: []chat.ChatCompletionMessage{
			{Role: chat.ChatMessageRoleSystem, Content: smallTalkPrompt},
			{Role: chat.ChatMessageRoleUser, Content: req.Text},
		},
		MaxTokens:   120,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return NotHandled, nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
