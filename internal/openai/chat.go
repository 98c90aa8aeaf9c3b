package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used for grounded answer generation
	DefaultChatModel = openai.GPT4oMini

	chatTimeout   = 60 * time.Second
	chatMaxTokens = 1000
)

// ErrNoChoices is returned when the completion carries no message
var ErrNoChoices = errors.New("no completion choices returned")

// ChatAPI runs a single system+user prompt.
type ChatAPI interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type openAIChatAdapter struct {
	client *openai.Client
	model  string
}

func (a *openAIChatAdapter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatClient generates answers from a prompt. It is never retried.
type ChatClient struct {
	api ChatAPI
}

// NewChatClient creates a ChatClient for the given model.
func NewChatClient(apiKey, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{api: &openAIChatAdapter{client: openai.NewClient(apiKey), model: model}}
}

// Generate returns the model's reply to the system and user prompts.
func (c *ChatClient) Generate(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	text, err := c.api.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}
