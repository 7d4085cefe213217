package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func summary(sessionID, userID string) SummaryRecord {
	return SummaryRecord{
		SessionID: sessionID,
		UserID:    userID,
		Started:   time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		Ended:     time.Now().UTC().Truncate(time.Second),
		Digest:    "3 turns; topics: passing",
		Topics:    []string{"passing", "chiefs"},
		TurnCount: 3,
		Successes: 2,
		Failures:  1,
	}
}

func knowledge(id string) KnowledgeRecord {
	return KnowledgeRecord{
		ID:          id,
		AgentID:     "insight-1",
		Type:        "insight",
		Description: "red-zone efficiency trending up",
		Confidence:  0.8,
		Tags:        []string{"redzone", "chiefs"},
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	// summaries scoped by user, oldest first
	s1 := summary("sess-1", "u1")
	s2 := summary("sess-2", "u1")
	s2.Ended = s1.Ended.Add(time.Minute)
	require.NoError(t, s.AppendSummary(ctx, s1))
	require.NoError(t, s.AppendSummary(ctx, s2))
	require.NoError(t, s.AppendSummary(ctx, summary("sess-3", "u2")))

	got, err := s.Summaries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sess-1", got[0].SessionID)
	assert.Equal(t, []string{"passing", "chiefs"}, got[0].Topics)
	assert.Equal(t, 2, got[0].Successes)

	// duplicate session id is a no-op
	dup := summary("sess-1", "u1")
	dup.Digest = "overwritten?"
	require.NoError(t, s.AppendSummary(ctx, dup))
	got, err = s.Summaries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3 turns; topics: passing", got[0].Digest)

	// knowledge round trip
	require.NoError(t, s.AppendKnowledge(ctx, knowledge("k1")))
	require.NoError(t, s.AppendKnowledge(ctx, knowledge("k1")))
	require.NoError(t, s.AppendKnowledge(ctx, knowledge("k2")))

	items, err := s.Knowledge(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "k1", items[0].ID)
	assert.Equal(t, []string{"redzone", "chiefs"}, items[0].Tags)
	assert.InDelta(t, 0.8, items[0].Confidence, 1e-9)
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huddle.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huddle.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendSummary(context.Background(), summary("sess-1", "u1")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Summaries(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sess-1", got[0].SessionID)
}
