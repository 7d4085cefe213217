package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/gridironlabs/huddle/core"
	"github.com/gridironlabs/huddle/logging"
	"github.com/gridironlabs/huddle/model"
	"github.com/gridironlabs/huddle/store"
)

const shardCount = 16

// Turn is one completed request/response exchange. Turns are immutable once
// recorded and are evicted from the ring once it exceeds its bound; their
// content survives in the pending session digest, which folds every turn
// incrementally at AddTurn time.
type Turn struct {
	UserID      string    `json:"user_id"`
	Query       string    `json:"query"`
	Response    string    `json:"response"`
	ContextUsed string    `json:"context_used"`
	Tokens      int       `json:"tokens"`
	Role        string    `json:"role"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
}

// SessionSummary is the compressed digest of a closed session. Immutable
// once created; persisted through the configured store.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Started   time.Time `json:"started"`
	Ended     time.Time `json:"ended"`
	Digest    string    `json:"digest"`
	Topics    []string  `json:"topics"`
	TurnCount int       `json:"turn_count"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
}

// Preferences is the derived user-preference estimate EnhanceContext emits.
type Preferences struct {
	// Expertise is the trend inferred from the sequence of detected roles:
	// "beginner", "intermediate" or "advanced".
	Expertise string `json:"expertise"`
	// PreferredTopics are the most frequent topics across recent turns and
	// past session summaries.
	PreferredTopics []string `json:"preferred_topics"`
}

// Options configures a Memory.
type Options struct {
	// TurnBound caps buffered turns per user. Default 10.
	TurnBound int
	// IdleTimeout closes a session with no activity for this long. Default
	// 30 minutes.
	IdleTimeout time.Duration
	// TopicLimit caps topics kept in a session digest. Default 5.
	TopicLimit int
	// Store persists summaries; nil keeps them in process only.
	Store store.Store
	// Summarizer, when set, produces session digests; errors fall back to
	// the heuristic digest.
	Summarizer model.Summarizer
	// Logger defaults to NoOp.
	Logger logging.Logger
	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

// Memory is the per-user bounded conversation history. Safe for concurrent
// use; state is sharded by user id so unrelated users never contend.
type Memory struct {
	shards     [shardCount]*shard
	bound      int
	idle       time.Duration
	topicLimit int
	store      store.Store
	summarizer model.Summarizer
	logger     logging.Logger
	clock      func() time.Time
}

type shard struct {
	mu    sync.RWMutex
	users map[string]*userState
}

type userState struct {
	sessionID    string
	sessionStart time.Time
	lastActivity time.Time
	ring         *turnRing

	// Pending digest, folded incrementally so ring eviction loses only
	// raw-turn lookup, never information.
	topicCounts map[string]int
	turnCount   int
	successes   int
	failures    int
	roles       []string

	summaries []SessionSummary
	replayed  bool
}

// New creates a Memory with the given options.
func New(optFns ...func(o *Options)) *Memory {
	opts := Options{
		TurnBound:   10,
		IdleTimeout: 30 * time.Minute,
		TopicLimit:  5,
		Clock:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	m := &Memory{
		bound:      opts.TurnBound,
		idle:       opts.IdleTimeout,
		topicLimit: opts.TopicLimit,
		store:      opts.Store,
		summarizer: opts.Summarizer,
		logger:     logging.OrNoOp(opts.Logger),
		clock:      opts.Clock,
	}
	for i := range m.shards {
		m.shards[i] = &shard{users: make(map[string]*userState)}
	}
	return m
}

func (m *Memory) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return m.shards[h.Sum32()%shardCount]
}

// StartSession opens a session for the user, returning the existing session
// id unchanged when one is already active. Persisted summaries for the user
// are replayed on first contact; a store failure degrades to empty memory
// and never blocks.
func (m *Memory) StartSession(userID, firstQuery string) string {
	var replay []store.SummaryRecord
	if m.store != nil {
		// Replay outside the shard lock; the store may be slow.
		recs, err := m.store.Summaries(context.Background(), userID)
		if err != nil {
			m.logger.Warn("summary replay failed, proceeding with empty memory", "user_id", userID, "error", err)
		} else {
			replay = recs
		}
	}

	sh := m.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.users[userID]
	if st == nil {
		st = &userState{ring: newTurnRing(m.bound)}
		sh.users[userID] = st
	}
	if !st.replayed {
		for _, rec := range replay {
			st.summaries = append(st.summaries, summaryFromRecord(rec))
		}
		st.replayed = true
	}
	if st.sessionID != "" {
		return st.sessionID
	}
	now := m.clock()
	st.sessionID = core.NewID()
	st.sessionStart = now
	st.lastActivity = now
	st.topicCounts = make(map[string]int)
	st.turnCount, st.successes, st.failures = 0, 0, 0
	st.roles = nil
	m.logger.Debug("session started", "user_id", userID, "session_id", st.sessionID, "first_query_topics", extractTopics(firstQuery))
	return st.sessionID
}

// AddTurn appends a completed turn to the user's ring buffer, starting a
// session implicitly when none is active. The turn is folded into the
// pending digest before any eviction happens.
func (m *Memory) AddTurn(userID string, t Turn) {
	sh := m.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.users[userID]
	if st == nil {
		st = &userState{ring: newTurnRing(m.bound)}
		sh.users[userID] = st
	}
	if st.sessionID == "" {
		// Implicit session start; StartSession is the explicit path.
		now := m.clock()
		st.sessionID = core.NewID()
		st.sessionStart = now
		st.topicCounts = make(map[string]int)
		st.turnCount, st.successes, st.failures = 0, 0, 0
		st.roles = nil
	}

	for _, topic := range extractTopics(t.Query) {
		st.topicCounts[topic]++
	}
	st.turnCount++
	if t.Success {
		st.successes++
	} else {
		st.failures++
	}
	if t.Role != "" {
		st.roles = append(st.roles, t.Role)
	}
	st.lastActivity = m.clock()
	st.ring.push(t)
}

// RecentTurns returns a copy of the user's buffered turns, oldest first.
func (m *Memory) RecentTurns(userID string) []Turn {
	sh := m.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st := sh.users[userID]
	if st == nil {
		return nil
	}
	return st.ring.turns()
}

// EndSession closes the user's active session, compressing its turns into a
// SessionSummary. The summary is persisted when a store is configured; a
// persistence failure is logged and the summary still returned. Returns an
// error when no session is active.
func (m *Memory) EndSession(ctx context.Context, userID string) (*SessionSummary, error) {
	sh := m.shardFor(userID)
	sh.mu.Lock()
	st := sh.users[userID]
	if st == nil || st.sessionID == "" {
		sh.mu.Unlock()
		return nil, fmt.Errorf("no active session for user %s", userID)
	}

	summary := SessionSummary{
		SessionID: st.sessionID,
		UserID:    userID,
		Started:   st.sessionStart,
		Ended:     m.clock(),
		Topics:    topTopics(st.topicCounts, m.topicLimit),
		TurnCount: st.turnCount,
		Successes: st.successes,
		Failures:  st.failures,
	}
	turnsText := renderTurns(st.ring.turns())

	// Clear the active-session marker before releasing the lock so a
	// concurrent AddTurn opens a fresh session instead of mutating the one
	// being closed.
	st.sessionID = ""
	st.ring = newTurnRing(m.bound)
	st.topicCounts = nil
	st.roles = nil
	sh.mu.Unlock()

	summary.Digest = m.digest(ctx, summary, turnsText)

	if m.store != nil {
		if err := m.store.AppendSummary(ctx, recordFromSummary(summary)); err != nil {
			m.logger.Warn("summary persistence failed", "session_id", summary.SessionID, "error", err)
		}
	}

	sh.mu.Lock()
	st.summaries = append(st.summaries, summary)
	sh.mu.Unlock()

	return &summary, nil
}

// ReapIdle closes every session idle for at least the configured timeout,
// returning the resulting summaries.
func (m *Memory) ReapIdle(ctx context.Context) []SessionSummary {
	cutoff := m.clock().Add(-m.idle)
	var idle []string
	for _, sh := range m.shards {
		sh.mu.RLock()
		for userID, st := range sh.users {
			if st.sessionID != "" && !st.lastActivity.After(cutoff) {
				idle = append(idle, userID)
			}
		}
		sh.mu.RUnlock()
	}
	var out []SessionSummary
	for _, userID := range idle {
		if s, err := m.EndSession(ctx, userID); err == nil {
			out = append(out, *s)
		}
	}
	return out
}

// digest produces the session digest, preferring the configured summarizer
// and falling back to the heuristic rendering on any error.
func (m *Memory) digest(ctx context.Context, s SessionSummary, turnsText string) string {
	heuristic := fmt.Sprintf("%d turns; topics: %s; %d succeeded, %d failed",
		s.TurnCount, strings.Join(s.Topics, ", "), s.Successes, s.Failures)
	if m.summarizer == nil || turnsText == "" {
		return heuristic
	}
	digest, err := m.summarizer.Summarize(ctx, turnsText)
	if err != nil {
		m.logger.Warn("summarizer failed, using heuristic digest", "session_id", s.SessionID, "error", err)
		return heuristic
	}
	return digest
}

func renderTurns(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", t.Query, t.Response)
	}
	return sb.String()
}

func summaryFromRecord(rec store.SummaryRecord) SessionSummary {
	return SessionSummary{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		Started:   rec.Started,
		Ended:     rec.Ended,
		Digest:    rec.Digest,
		Topics:    rec.Topics,
		TurnCount: rec.TurnCount,
		Successes: rec.Successes,
		Failures:  rec.Failures,
	}
}

func recordFromSummary(s SessionSummary) store.SummaryRecord {
	return store.SummaryRecord{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		Started:   s.Started,
		Ended:     s.Ended,
		Digest:    s.Digest,
		Topics:    s.Topics,
		TurnCount: s.TurnCount,
		Successes: s.Successes,
		Failures:  s.Failures,
	}
}
