// Package store persists the append-only records the core survives restarts
// with: session summaries produced by conversation memory and knowledge
// items published through the collaboration manager. Implementations must
// provide at-least-once durability with idempotent replay: appending a
// record whose id already exists is a no-op.
package store

import (
	"context"
	"time"
)

// SummaryRecord is the persisted form of a closed session's digest.
type SummaryRecord struct {
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

// KnowledgeRecord is the persisted form of a published knowledge item.
type KnowledgeRecord struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Tags        []string  `json:"tags"`
	Supersedes  string    `json:"supersedes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the persistence boundary. A store failure must never block a
// request; callers degrade to empty memory instead.
type Store interface {
	// AppendSummary persists a session summary. A duplicate session id is a
	// no-op (idempotent replay).
	AppendSummary(ctx context.Context, rec SummaryRecord) error

	// Summaries returns all persisted summaries for a user, oldest first.
	Summaries(ctx context.Context, userID string) ([]SummaryRecord, error)

	// AppendKnowledge persists a knowledge item. A duplicate id is a no-op.
	AppendKnowledge(ctx context.Context, rec KnowledgeRecord) error

	// Knowledge returns all persisted knowledge items, oldest first.
	Knowledge(ctx context.Context) ([]KnowledgeRecord, error)

	// Close releases underlying resources.
	Close() error
}
