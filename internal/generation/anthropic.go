package generation

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	cfg    BackendConfig
	client anthropic.Client
}

// NewAnthropicBackend creates a backend using the official Anthropic client.
// SDK-level retries are disabled; the Client owns the retry policy.
func NewAnthropicBackend(cfg BackendConfig) *AnthropicBackend {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicBackend{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the backend's identifier.
func (b *AnthropicBackend) Name() string {
	return b.cfg.Name
}

// Complete sends one message request and joins the text blocks of the reply.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.model(req.Model)),
		MaxTokens: b.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)),
		},
	}
	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	var reqOpts []option.RequestOption
	for _, key := range sortedKeys(req.Extra) {
		reqOpts = append(reqOpts, option.WithJSONSet(key, req.Extra[key]))
	}

	resp, err := b.client.Messages.New(ctx, params, reqOpts...)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}
