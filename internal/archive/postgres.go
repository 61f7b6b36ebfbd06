package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crystaldolphin/chatkeeper/internal/conversation"
)

// PostgresStore persists snapshots in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			summaries INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			char_length INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations (updated_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snap conversation.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, created_at, updated_at, summaries)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, summaries = EXCLUDED.summaries`,
		snap.ID, snap.CreatedAt.UTC(), snap.UpdatedAt.UTC(), snap.Summaries,
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_turns WHERE conversation_id=$1`, snap.ID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}

	batch := &pgx.Batch{}
	for i, t := range snap.Turns {
		batch.Queue(
			`INSERT INTO conversation_turns (conversation_id, seq, id, speaker, text, char_length, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snap.ID, i, t.ID, string(t.Speaker), t.Text, t.CharLength, t.Timestamp.UTC(),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save turns: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (conversation.Snapshot, error) {
	snap := conversation.Snapshot{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT created_at, updated_at, summaries FROM conversations WHERE id=$1`, id,
	).Scan(&snap.CreatedAt, &snap.UpdatedAt, &snap.Summaries)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("load conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, speaker, text, char_length, created_at
		 FROM conversation_turns WHERE conversation_id=$1 ORDER BY seq`, id)
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t conversation.Turn
		var speaker string
		if err := rows.Scan(&t.ID, &speaker, &t.Text, &t.CharLength, &t.Timestamp); err != nil {
			return conversation.Snapshot{}, fmt.Errorf("scan turn row: %w", err)
		}
		t.Speaker = conversation.Speaker(speaker)
		snap.Turns = append(snap.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return conversation.Snapshot{}, fmt.Errorf("iterate turn rows: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.created_at, c.updated_at, COUNT(t.seq)
		 FROM conversations c LEFT JOIN conversation_turns t ON t.conversation_id = c.id
		 GROUP BY c.id ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Turns); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
