package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation modes and turn history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	keys keySource
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
		`CREATE TABLE IF NOT EXISTS conversation_modes (
			identity TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			identity TEXT NOT NULL,
			ts_key BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (identity, ts_key)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetMode(ctx context.Context, identity string) (string, error) {
	var m string
	err := s.pool.QueryRow(ctx,
		`SELECT mode FROM conversation_modes WHERE identity=$1`, identity,
	).Scan(&m)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get mode: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) SetMode(ctx context.Context, identity, mode string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_modes (identity, mode) VALUES ($1, $2)
		 ON CONFLICT (identity) DO UPDATE SET mode=EXCLUDED.mode, updated_at=now()`,
		identity, mode,
	)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearHistory(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE identity=$1`, identity,
	)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, identity, role, content string) error {
	if !ValidRole(role) || content == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (identity, ts_key, role, content)
		 VALUES ($1, $2, $3, $4)`,
		identity, s.keys.next(), role, content,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadRecentHistory(ctx context.Context, identity string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ts_key, role, content FROM conversation_turns
		 WHERE identity=$1 AND role IN ('user','assistant') AND content <> ''
		 ORDER BY ts_key DESC LIMIT $2`,
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, limit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.TS, &t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (s *PostgresStore) TrimHistory(ctx context.Context, identity string, keep int) error {
	if keep <= 0 {
		keep = DefaultHistoryLimit
	}

	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns
		 WHERE identity=$1 AND ts_key NOT IN (
			SELECT ts_key FROM conversation_turns
			WHERE identity=$1 ORDER BY ts_key DESC LIMIT $2
		 )`,
		identity, keep,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Driver() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
