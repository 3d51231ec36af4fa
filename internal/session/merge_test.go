package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turag/internal/ragmodel"
)

func TestMergeObservations_SameValueIncrementsMentionCount(t *testing.T) {
	s := NewSession("s1", time.Now())
	obs := []ragmodel.EntityObservation{{Kind: ragmodel.EntityDestination, Value: "Rim", Confidence: 0.8}}

	MergeObservations(s, "t1", obs, time.Now())
	MergeObservations(s, "t2", obs, time.Now())

	mention := s.EntityMap[ragmodel.EntityDestination]["Rim"]
	require.NotNil(t, mention)
	assert.Equal(t, 2, mention.MentionCount)
	assert.Equal(t, "Rim", s.ActiveEntities[ragmodel.EntityDestination])
}

func TestMergeObservations_StickyKindKeepsOldActiveAddsSecondary(t *testing.T) {
	s := NewSession("s1", time.Now())
	MergeObservations(s, "t1", []ragmodel.EntityObservation{{Kind: ragmodel.EntityBudget, Value: "500 EUR", Confidence: 0.9}}, time.Now())
	MergeObservations(s, "t2", []ragmodel.EntityObservation{{Kind: ragmodel.EntityBudget, Value: "300 EUR", Confidence: 0.7}}, time.Now())

	assert.Equal(t, "500 EUR", s.ActiveEntities[ragmodel.EntityBudget])
	assert.Contains(t, s.EntityMap[ragmodel.EntityBudget], "500 EUR")
	assert.Contains(t, s.EntityMap[ragmodel.EntityBudget], "300 EUR")
}

func TestMergeObservations_SingletonKindSwitchesActiveView(t *testing.T) {
	s := NewSession("s1", time.Now())
	MergeObservations(s, "t1", []ragmodel.EntityObservation{{Kind: ragmodel.EntityDestination, Value: "Rim", Confidence: 0.9}}, time.Now())
	MergeObservations(s, "t2", []ragmodel.EntityObservation{{Kind: ragmodel.EntityDestination, Value: "Pariz", Confidence: 0.9}}, time.Now())

	assert.Equal(t, "Pariz", s.ActiveEntities[ragmodel.EntityDestination])
	assert.Contains(t, s.EntityMap[ragmodel.EntityDestination], "Rim")
	assert.Contains(t, s.EntityMap[ragmodel.EntityDestination], "Pariz")
}
