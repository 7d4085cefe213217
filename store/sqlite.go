package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. Both tables are
// append-only; INSERT OR IGNORE on the primary key gives idempotent replay.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and ensures
// the schema exists. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}
	return s, nil
}

// NewSQLiteStore wraps an existing database handle, ensuring the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_summaries (
			session_id TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			started    TIMESTAMP NOT NULL,
			ended      TIMESTAMP NOT NULL,
			digest     TEXT NOT NULL,
			topics     TEXT NOT NULL,
			turn_count INTEGER NOT NULL,
			successes  INTEGER NOT NULL,
			failures   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_summaries_user ON session_summaries(user_id);

		CREATE TABLE IF NOT EXISTS knowledge_items (
			id          TEXT PRIMARY KEY,
			agent_id    TEXT NOT NULL,
			type        TEXT NOT NULL,
			description TEXT NOT NULL,
			confidence  REAL NOT NULL,
			tags        TEXT NOT NULL,
			supersedes  TEXT,
			created_at  TIMESTAMP NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendSummary implements Store.
func (s *SQLiteStore) AppendSummary(ctx context.Context, rec SummaryRecord) error {
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_summaries
			(session_id, user_id, started, ended, digest, topics, turn_count, successes, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.UserID, rec.Started.UTC(), rec.Ended.UTC(), rec.Digest,
		string(topics), rec.TurnCount, rec.Successes, rec.Failures,
	)
	if err != nil {
		return fmt.Errorf("append summary %s: %w", rec.SessionID, err)
	}
	return nil
}

// Summaries implements Store.
func (s *SQLiteStore) Summaries(ctx context.Context, userID string) ([]SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, started, ended, digest, topics, turn_count, successes, failures
		FROM session_summaries WHERE user_id = ? ORDER BY ended ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		var topics string
		var started, ended time.Time
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &started, &ended, &rec.Digest,
			&topics, &rec.TurnCount, &rec.Successes, &rec.Failures); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		rec.Started, rec.Ended = started, ended
		if err := json.Unmarshal([]byte(topics), &rec.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics for %s: %w", rec.SessionID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendKnowledge implements Store.
func (s *SQLiteStore) AppendKnowledge(ctx context.Context, rec KnowledgeRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO knowledge_items
			(id, agent_id, type, description, confidence, tags, supersedes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentID, rec.Type, rec.Description, rec.Confidence,
		string(tags), rec.Supersedes, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append knowledge %s: %w", rec.ID, err)
	}
	return nil
}

// Knowledge implements Store.
func (s *SQLiteStore) Knowledge(ctx context.Context) ([]KnowledgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, type, description, confidence, tags, supersedes, created_at
		FROM knowledge_items ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeRecord
	for rows.Next() {
		var rec KnowledgeRecord
		var tags string
		var supersedes sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.Type, &rec.Description,
			&rec.Confidence, &tags, &supersedes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		rec.Supersedes = supersedes.String
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
