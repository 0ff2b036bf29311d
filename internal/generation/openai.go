package generation

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint.
// Gemini is reached through its OpenAI-compatible base URL.
type OpenAIBackend struct {
	cfg    BackendConfig
	client openai.Client
}

// NewOpenAIBackend creates a backend using the official OpenAI client.
// SDK-level retries are disabled; the Client owns the retry policy.
func NewOpenAIBackend(cfg BackendConfig) *OpenAIBackend {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}
}

// Name returns the backend's identifier.
func (b *OpenAIBackend) Name() string {
	return b.cfg.Name
}

// Complete sends one chat completion request.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	messages = append(messages, openai.UserMessage(req.Input))

	params := openai.ChatCompletionNewParams{
		Model:    b.cfg.model(req.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if b.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(b.cfg.MaxTokens)
	}

	var reqOpts []option.RequestOption
	for _, key := range sortedKeys(req.Extra) {
		reqOpts = append(reqOpts, option.WithJSONSet(key, req.Extra[key]))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
