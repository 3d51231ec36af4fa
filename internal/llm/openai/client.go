// Package openai adapts the OpenAI chat completions API to the
// portable llm.Provider contract, including JSON-schema response mode
// for the enrichment and self-query stages.
package openai

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"turag/internal/config"
	"turag/internal/llm"
)

// Client wraps the OpenAI SDK client behind llm.Provider.
type Client struct {
	sdk   sdk.Client
	model string
}

// New builds a Client from the OpenAI-specific config section.
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := cfg.Model
	if model == "" {
		model = sdk.ChatModelGPT4oMini
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

func adaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) params(msgs []llm.Message, opts llm.ChatOptions) sdk.ChatCompletionNewParams {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	p := sdk.ChatCompletionNewParams{
		Model:    model,
		Messages: adaptMessages(msgs),
	}
	if opts.MaxTokens > 0 {
		p.MaxTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		p.Temperature = sdk.Float(float64(*opts.Temperature))
	}
	if len(opts.JSONSchema) > 0 {
		name := opts.JSONSchemaName
		if name == "" {
			name = "response"
		}
		p.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: rawJSONSchema(opts.JSONSchema),
					Strict: sdk.Bool(true),
				},
			},
		}
	}
	return p
}

// Chat sends msgs and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, c.params(msgs, opts))
	if err != nil {
		return llm.Message{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("openai chat: empty choices")
	}
	return llm.Message{Role: "assistant", Content: resp.Choices[0].Message.Content}, nil
}

// ChatStream streams incremental text deltas to h.
func (c *Client) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, c.params(msgs, opts))
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := h(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}
