package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/llm"
	"turag/internal/ragmodel"
)

func TestExtract_RuleBasedDestinationAndBudget(t *testing.T) {
	e := New(nil, "")
	got := e.Extract(context.Background(), "Daj mi neki aranžman za Amsterdam u maju, budžet oko 500 EUR.", nil)

	var dest, budget, month *ragmodel.EntityObservation
	for i := range got {
		switch got[i].Kind {
		case ragmodel.EntityDestination:
			dest = &got[i]
		case ragmodel.EntityBudget:
			budget = &got[i]
		case ragmodel.EntityTravelDates:
			month = &got[i]
		}
	}
	require.NotNil(t, dest)
	assert.Equal(t, "Amsterdam", dest.Value)
	require.NotNil(t, budget)
	assert.Equal(t, "500", budget.Value)
	require.NotNil(t, month)
	assert.Equal(t, "may", month.Value)
}

func TestExtract_NoLLMWhenProviderNil(t *testing.T) {
	e := New(nil, "")
	got := e.Extract(context.Background(), "Koliko košta?", nil)
	assert.Empty(t, got)
}

func TestExtract_RuleBasedWinsOnKindCollision(t *testing.T) {
	e := &Extractor{provider: stubLLM{`[{"kind":"destination","value":"Pariz","confidence":0.9}]`}, model: ""}
	got := e.Extract(context.Background(), "Tražim hotel u Rimu.", nil)

	var dests []string
	for _, g := range got {
		if g.Kind == ragmodel.EntityDestination {
			dests = append(dests, g.Value)
		}
	}
	assert.Equal(t, []string{"Rim"}, dests)
}

type stubLLM struct{ content string }

func (s stubLLM) Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (llm.Message, error) {
	return llm.Message{Role: "assistant", Content: s.content}, nil
}

func (s stubLLM) ChatStream(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions, h llm.StreamHandler) error {
	return nil
}
