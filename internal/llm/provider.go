package llm

import "context"

// Message is a single turn in a chat exchange. Role is one of
// "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// ChatOptions configures a single Provider call.
type ChatOptions struct {
	Model string

	// Temperature, when non-nil, overrides the provider default.
	Temperature *float32

	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int

	// JSONSchema, when non-empty, requests structured JSON output
	// conforming to this schema (used by enrich and selfquery).
	// The OpenAI client uses its native JSON-schema response mode, the
	// Anthropic client appends the schema to the system prompt, and the
	// Google client only requests a JSON response type; the caller always
	// validates the result regardless.
	JSONSchema []byte

	// JSONSchemaName labels the schema for providers that require one.
	JSONSchemaName string
}

// StreamHandler receives incremental text from ChatStream.
type StreamHandler func(delta string) error

// Provider is the portable contract every backend (anthropic, openai,
// google) implements. Callers never depend on SDK types directly.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, opts ChatOptions) (Message, error)
	ChatStream(ctx context.Context, msgs []Message, opts ChatOptions, h StreamHandler) error
}
