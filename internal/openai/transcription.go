package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultTranscriptionModel is the speech-to-text model
const DefaultTranscriptionModel = openai.Whisper1

const transcriptionTimeout = 10 * time.Minute

// TranscriptionAPI sends one media file to the speech-to-text endpoint.
type TranscriptionAPI interface {
	CreateTranscription(ctx context.Context, path, language string) (string, error)
}

type openAITranscriptionAdapter struct {
	client *openai.Client
	model  string
}

func (a *openAITranscriptionAdapter) CreateTranscription(ctx context.Context, path, language string) (string, error) {
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.model,
		FilePath: path,
		Language: language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Transcriber turns audio files into text.
type Transcriber struct {
	api TranscriptionAPI
}

// NewTranscriber creates a Transcriber for the given model.
func NewTranscriber(apiKey, model string) *Transcriber {
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &Transcriber{
		api: &openAITranscriptionAdapter{client: openai.NewClient(apiKey), model: model},
	}
}

// Transcribe returns the recognized text of the file at path, trimmed.
func (t *Transcriber) Transcribe(ctx context.Context, path, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptionTimeout)
	defer cancel()

	text, err := t.api.CreateTranscription(ctx, path, language)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe %s: %w", path, err)
	}
	return strings.TrimSpace(text), nil
}
