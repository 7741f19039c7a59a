// Package chat relays storefront assistant prompts to an OpenAI-compatible
// completion API. The relay itself is stateless; request throttling lives in
// the middleware in front of it.
package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/creatorstack/storefront/pkg/models"
)

const systemPrompt = "You are Milo, the storefront shopping assistant. " +
	"Answer questions about the creator's listed apps and products. " +
	"Be concise and friendly; if you do not know, say so."

// completionAPI is the slice of the OpenAI client the relay needs.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service proxies chat prompts to the completion API.
type Service struct {
	client    completionAPI
	model     string
	maxTokens int
}

// NewService creates a chat relay backed by the OpenAI API.
func NewService(apiKey string) *Service {
	return &Service{
		client:    openai.NewClient(apiKey),
		model:     openai.GPT4oMini,
		maxTokens: 1000,
	}
}

// Relay sends one prompt and returns the assistant reply. The optional page
// context is prepended as a second system message.
func (s *Service) Relay(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if req.Context != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Storefront context: " + req.Context,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		Messages:  messages,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from assistant")
	}

	log.Printf("💬 Chat relay completed: %d tokens (duration: %v)", resp.Usage.TotalTokens, time.Since(start))

	return &models.ChatResponse{Reply: resp.Choices[0].Message.Content}, nil
}
