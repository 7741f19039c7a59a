package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorstack/storefront/pkg/models"
)

type fakeCompletionAPI struct {
	gotReq    openai.ChatCompletionRequest
	reply     string
	noChoices bool
	err       error
}

func (f *fakeCompletionAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.noChoices {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

func TestRelay_ReturnsAssistantReply(t *testing.T) {
	fake := &fakeCompletionAPI{reply: "LaunchKit costs $100."}
	svc := &Service{client: fake, model: openai.GPT4oMini, maxTokens: 1000}

	resp, err := svc.Relay(context.Background(), models.ChatRequest{Prompt: "How much is LaunchKit?"})
	require.NoError(t, err)
	assert.Equal(t, "LaunchKit costs $100.", resp.Reply)

	require.Len(t, fake.gotReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.gotReq.Messages[0].Role)
	assert.Equal(t, "How much is LaunchKit?", fake.gotReq.Messages[1].Content)
}

func TestRelay_PageContextBecomesSystemMessage(t *testing.T) {
	fake := &fakeCompletionAPI{reply: "ok"}
	svc := &Service{client: fake, model: openai.GPT4oMini, maxTokens: 1000}

	_, err := svc.Relay(context.Background(), models.ChatRequest{
		Prompt:  "What do you sell?",
		Context: "storefront jane-123, 3 listed apps",
	})
	require.NoError(t, err)

	require.Len(t, fake.gotReq.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.gotReq.Messages[1].Role)
	assert.Contains(t, fake.gotReq.Messages[1].Content, "jane-123")
}

func TestRelay_UpstreamError(t *testing.T) {
	fake := &fakeCompletionAPI{err: errors.New("rate limited upstream")}
	svc := &Service{client: fake, model: openai.GPT4oMini, maxTokens: 1000}

	_, err := svc.Relay(context.Background(), models.ChatRequest{Prompt: "hi"})
	assert.Error(t, err)
}

func TestRelay_EmptyChoices(t *testing.T) {
	fake := &fakeCompletionAPI{noChoices: true}
	svc := &Service{client: fake, model: openai.GPT4oMini, maxTokens: 1000}

	_, err := svc.Relay(context.Background(), models.ChatRequest{Prompt: "hi"})
	assert.Error(t, err)
}
