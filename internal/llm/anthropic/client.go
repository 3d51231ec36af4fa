// Package anthropic adapts the Anthropic Messages API to the portable
// llm.Provider contract.
package anthropic

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"turag/internal/config"
	"turag/internal/llm"
)

// Client wraps the Anthropic SDK client behind llm.Provider.
type Client struct {
	sdk       sdk.Client
	model     string
	maxTokens int
}

// New builds a Client from the Anthropic-specific config section.
func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := cfg.Model
	if model == "" {
		model = string(sdk.ModelClaude3_7SonnetLatest)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model, maxTokens: maxTokens}
}

func adaptMessages(msgs []llm.Message) (system string, turns []sdk.MessageParam) {
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			turns = append(turns, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			turns = append(turns, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return system, turns
}

func (c *Client) params(msgs []llm.Message, opts llm.ChatOptions) sdk.MessageNewParams {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := c.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	system, turns := adaptMessages(msgs)
	if len(opts.JSONSchema) > 0 {
		system += "\n\nRespond with a single JSON object only, matching this schema, and nothing else:\n" + string(opts.JSONSchema)
	}
	p := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
	}
	if system != "" {
		p.System = []sdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		p.Temperature = sdk.Float(float64(*opts.Temperature))
	}
	return p
}

// Chat sends msgs and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	resp, err := c.sdk.Messages.New(ctx, c.params(msgs, opts))
	if err != nil {
		return llm.Message{}, fmt.Errorf("anthropic chat: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llm.Message{Role: "assistant", Content: text}, nil
}

// ChatStream streams incremental text deltas to h.
func (c *Client) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	stream := c.sdk.Messages.NewStreaming(ctx, c.params(msgs, opts))
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta.Delta.Text != "" {
			if err := h(delta.Delta.Text); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}
	return nil
}
