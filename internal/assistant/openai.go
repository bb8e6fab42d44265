// Package assistant answers chat messages through a text-completion provider.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	completionTimeout = 30 * time.Second

	// contextLimit caps how much note text rides along in the system
	// prompt; anything beyond it is cut, oldest bytes first.
	contextLimit = 8 * 1024
)

const systemPrompt = "You are a friendly, helpful assistant inside a notes app. " +
	"Answer in a natural, simple way. Be short and to the point."

const notConfiguredReply = "[assistant not configured] Set OPENAI_API_KEY to enable chat."

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service wraps the completion client. A nil client means chat is
// unconfigured; replies degrade to inline notices, never errors.
type Service struct {
	client *openai.Client
	model  string
}

func NewService(apiKey, baseURL, model string) *Service {
	if apiKey == "" {
		return &Service{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Service{client: openai.NewClientWithConfig(cfg), model: model}
}

// IsConfigured returns true if a completion provider is configured
func (s *Service) IsConfigured() bool {
	return s.client != nil
}

// Complete produces a reply to message given prior history and optional note
// context. Failures come back as inline reply text so a flaky provider never
// breaks the conversation thread.
func (s *Service) Complete(ctx context.Context, message string, history []Message, noteContext string) string {
	if s.client == nil {
		return notConfiguredReply
	}

	system := systemPrompt
	if noteContext != "" {
		if len(noteContext) > contextLimit {
			noteContext = noteContext[len(noteContext)-contextLimit:]
		}
		system += "\n\nThe user's notes, for reference:\n" + noteContext
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		role := m.Role
		if role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: 0.6,
	})
	if err != nil {
		return fmt.Sprintf("[assistant error] %v", err)
	}
	if len(resp.Choices) == 0 {
		return "[assistant error] provider returned no choices"
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
