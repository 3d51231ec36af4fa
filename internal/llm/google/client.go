// Package google adapts the Gemini API (google.golang.org/genai) to the
// portable llm.Provider contract.
package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"turag/internal/config"
	"turag/internal/llm"
)

// Client wraps the genai SDK client behind llm.Provider.
type Client struct {
	sdk   *genai.Client
	model string
}

// New builds a Client from the Google-specific config section. httpClient
// is accepted for symmetry with the other providers; genai manages its
// own transport.
func New(ctx context.Context, cfg config.GoogleConfig, _ *http.Client) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{sdk: client, model: model}, nil
}

func adaptMessages(msgs []llm.Message) (system string, turns []*genai.Content) {
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system += m.Content
		case "assistant":
			turns = append(turns, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			turns = append(turns, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, turns
}

func (c *Client) genConfig(opts llm.ChatOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		cfg.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if len(opts.JSONSchema) > 0 {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (c *Client) model_(opts llm.ChatOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

// Chat sends msgs and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	system, turns := adaptMessages(msgs)
	cfg := c.genConfig(opts)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.sdk.Models.GenerateContent(ctx, c.model_(opts), turns, cfg)
	if err != nil {
		return llm.Message{}, fmt.Errorf("google chat: %w", err)
	}
	return llm.Message{Role: "assistant", Content: resp.Text()}, nil
}

// ChatStream streams incremental text deltas to h.
func (c *Client) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	system, turns := adaptMessages(msgs)
	cfg := c.genConfig(opts)
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	for chunk, err := range c.sdk.Models.GenerateContentStream(ctx, c.model_(opts), turns, cfg) {
		if err != nil {
			return fmt.Errorf("google stream: %w", err)
		}
		if text := chunk.Text(); text != "" {
			if err := h(text); err != nil {
				return err
			}
		}
	}
	return nil
}
