package store

import (
	"context"
	"fmt"
	"time"

	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createHintsTable = `
	CREATE TABLE IF NOT EXISTS hints (
		hint_id        TEXT PRIMARY KEY,
		target_node_id TEXT NOT NULL,
		key            BYTEA NOT NULL,
		value          BYTEA NOT NULL,
		write_ts       BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS hints_target_created_idx ON hints (target_node_id, created_at);
`

// PostgresOptions holds the connection settings for the hint database
type PostgresOptions struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxConnections  int32
	MinConnections  int32
	ConnMaxLifetime time.Duration
}

// NewPostgresPool creates a pgx pool. Connections are established lazily.
func NewPostgresPool(ctx context.Context, opts PostgresOptions) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		opts.User, opts.Password, opts.Host, opts.Port, opts.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if opts.MaxConnections > 0 {
		poolConfig.MaxConns = opts.MaxConnections
	}
	if opts.MinConnections > 0 {
		poolConfig.MinConns = opts.MinConnections
	}
	if opts.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// PgxPool is the subset of *pgxpool.Pool used by PostgresHintStore
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresHintStore implements HintStore using PostgreSQL
type PostgresHintStore struct {
	pool PgxPool
}

// NewPostgresHintStore creates a new PostgreSQL hint store
func NewPostgresHintStore(pool PgxPool) *PostgresHintStore {
	return &PostgresHintStore{
		pool: pool,
	}
}

// EnsureSchema creates the hints table if it does not exist
func (s *PostgresHintStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createHintsTable); err != nil {
		return fmt.Errorf("failed to create hints table: %w", err)
	}
	return nil
}

// StoreHint stores a hint for a failed write
func (s *PostgresHintStore) StoreHint(ctx context.Context, hint *model.Hint) error {
	query := `
		INSERT INTO hints (hint_id, target_node_id, key, value, write_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		hint.HintID,
		hint.TargetNodeID,
		hint.Key,
		hint.Value,
		hint.Timestamp,
		hint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store hint: %w", err)
	}

	return nil
}

// GetHintsForNode retrieves hints for a specific node, oldest first
func (s *PostgresHintStore) GetHintsForNode(ctx context.Context, targetNodeID string, limit int) ([]*model.Hint, error) {
	query := `
		SELECT hint_id, target_node_id, key, value, write_ts, created_at
		FROM hints
		WHERE target_node_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, query, targetNodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get hints: %w", err)
	}
	defer rows.Close()

	hints := make([]*model.Hint, 0)
	for rows.Next() {
		var hint model.Hint
		if err := rows.Scan(
			&hint.HintID,
			&hint.TargetNodeID,
			&hint.Key,
			&hint.Value,
			&hint.Timestamp,
			&hint.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		hints = append(hints, &hint)
	}

	return hints, rows.Err()
}

// GetHintCount returns the number of hints for a specific node
func (s *PostgresHintStore) GetHintCount(ctx context.Context, targetNodeID string) (int64, error) {
	query := `SELECT COUNT(*) FROM hints WHERE target_node_id = $1`

	var count int64
	if err := s.pool.QueryRow(ctx, query, targetNodeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get hint count: %w", err)
	}

	return count, nil
}

// CleanupOldHints deletes hints older than the specified TTL
func (s *PostgresHintStore) CleanupOldHints(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM hints WHERE created_at < $1`

	result, err := s.pool.Exec(ctx, query, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old hints: %w", err)
	}

	return result.RowsAffected(), nil
}

// Ping checks the database connection
func (s *PostgresHintStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresHintStore) Close() error {
	s.pool.Close()
	return nil
}
