package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleTurn(query, role string) Turn {
	return Turn{UserID: "u1", Query: query, Response: "ok", Role: role, Success: true, Timestamp: time.Now()}
}

func TestEnhanceContext_EmptyUser(t *testing.T) {
	m := New()
	base := map[string]any{"role": "analyst"}
	out := m.EnhanceContext("nobody", base)
	assert.Equal(t, "analyst", out["role"])
	assert.NotContains(t, out, KeyRecentTurns)
	assert.NotContains(t, out, KeyRelevantSummary)
}

func TestEnhanceContext_DoesNotMutateBase(t *testing.T) {
	m := New()
	m.AddTurn("u1", roleTurn("rushing stats", "analyst"))

	base := map[string]any{"role": "analyst"}
	out := m.EnhanceContext("u1", base)

	assert.Len(t, base, 1, "base context must stay untouched")
	assert.Contains(t, out, KeyRecentTurns)
	assert.Contains(t, out, KeyPreferences)
}

func TestEnhanceContext_Idempotent(t *testing.T) {
	m := New()
	m.AddTurn("u1", roleTurn("rushing stats this season", "coach"))

	first := m.EnhanceContext("u1", nil)
	second := m.EnhanceContext("u1", nil)
	assert.Equal(t, first, second, "enhancement must not change state")
}

func TestEnhanceContext_Preferences(t *testing.T) {
	m := New()
	m.AddTurn("u1", roleTurn("rushing stats", "coach"))
	m.AddTurn("u1", roleTurn("rushing defense matchups", "analyst"))
	m.AddTurn("u1", roleTurn("rushing model accuracy", "analyst"))

	out := m.EnhanceContext("u1", nil)
	prefs, ok := out[KeyPreferences].(Preferences)
	require.True(t, ok)
	assert.Contains(t, prefs.PreferredTopics, "rushing")
	// coach then analyst twice, recency-weighted, trends advanced
	assert.Equal(t, "advanced", prefs.Expertise)
}

func TestExpertiseTrend(t *testing.T) {
	assert.Equal(t, "beginner", expertiseTrend(nil))
	assert.Equal(t, "beginner", expertiseTrend([]string{"fan", "fan"}))
	assert.Equal(t, "intermediate", expertiseTrend([]string{"coach", "coach"}))
	assert.Equal(t, "advanced", expertiseTrend([]string{"analyst", "admin"}))
	// later roles weigh more
	assert.Equal(t, "advanced", expertiseTrend([]string{"fan", "analyst", "analyst"}))
}

func TestTopicOverlap(t *testing.T) {
	assert.Equal(t, 2, topicOverlap([]string{"passing", "yards", "chiefs"}, []string{"passing", "chiefs"}))
	assert.Equal(t, 0, topicOverlap([]string{"defense"}, []string{"offense"}))
}
