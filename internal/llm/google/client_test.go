package google

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"turag/internal/llm"
)

func TestAdaptMessagesConcatenatesSystemTurns(t *testing.T) {
	msgs := []llm.Message{
		{Role: "system", Content: "be terse. "},
		{Role: "system", Content: "answer in Serbian."},
		{Role: "user", Content: "zdravo"},
	}
	system, turns := adaptMessages(msgs)
	assert.Equal(t, "be terse. answer in Serbian.", system)
	assert.Len(t, turns, 1)
}
