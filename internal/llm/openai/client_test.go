package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"turag/internal/llm"
)

func TestAdaptMessagesPreservesOrderAndRole(t *testing.T) {
	msgs := []llm.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	out := adaptMessages(msgs)
	assert.Len(t, out, 3)
}

func TestRawJSONSchemaInvalidInputReturnsEmptyMap(t *testing.T) {
	got := rawJSONSchema([]byte("not json"))
	assert.Empty(t, got)
}

func TestRawJSONSchemaParsesValidDocument(t *testing.T) {
	got := rawJSONSchema([]byte(`{"type":"object"}`))
	assert.Equal(t, "object", got["type"])
}
