package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/lang"
)

// OpenAIMT translates through a chat-completions endpoint, selected
// with models.engine=openai. A custom base URL points it at any
// OpenAI-compatible server.
type OpenAIMT struct {
	client *openai.Client
	model  string
}

func NewOpenAIMT(apiKey, baseURL, model string) (*OpenAIMT, error) {
	if apiKey == "" {
		return nil, errors.New("openai mt: api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(opts...)
	return &OpenAIMT{client: &client, model: model}, nil
}

func (m *OpenAIMT) Translate(ctx context.Context, text string, src, tgt domain.Language) (core.TranslationResult, error) {
	start := time.Now()

	sys := fmt.Sprintf(
		"You are a translation engine. Translate the user's text from %s to %s. Reply with the translation only, no commentary.",
		lang.Name(src), lang.Name(tgt),
	)
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return core.TranslationResult{}, fmt.Errorf("%w: openai mt: %v", core.ErrInference, err)
	}
	if len(resp.Choices) == 0 {
		return core.TranslationResult{}, fmt.Errorf("%w: openai mt: no choices returned", core.ErrInference)
	}

	return core.TranslationResult{
		Text:           strings.TrimSpace(resp.Choices[0].Message.Content),
		SourceLanguage: src,
		TargetLanguage: tgt,
		Latency:        time.Since(start),
	}, nil
}
