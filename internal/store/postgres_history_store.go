package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/model"
)

// PostgresHistoryStore implements HistoryStore for PostgreSQL
type PostgresHistoryStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresHistoryStore creates a new PostgreSQL history store and ensures
// its schema exists.
func NewPostgresHistoryStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (HistoryStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresHistoryStore{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL history store",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("database", database))

	return s, nil
}

func (s *PostgresHistoryStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS restore_history (
			restore_id   TEXT PRIMARY KEY,
			repository   TEXT NOT NULL,
			snapshot     TEXT NOT NULL,
			state        TEXT NOT NULL,
			operation    JSONB NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create restore_history table: %w", err)
	}
	return nil
}

// SaveCompleted implements HistoryStore. Replays of the same restore id
// overwrite the previous row, keeping archiving idempotent.
func (s *PostgresHistoryStore) SaveCompleted(ctx context.Context, op model.RestoreOperation, completedAt time.Time) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal restore operation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO restore_history (restore_id, repository, snapshot, state, operation, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (restore_id) DO UPDATE
		SET state = EXCLUDED.state, operation = EXCLUDED.operation, completed_at = EXCLUDED.completed_at`,
		op.ID, op.Snapshot.Repository, op.Snapshot.ID.Name, string(op.State), payload, completedAt)
	if err != nil {
		return fmt.Errorf("failed to save restore history: %w", err)
	}
	return nil
}

// Get implements HistoryStore
func (s *PostgresHistoryStore) Get(ctx context.Context, restoreID string) (*ArchivedRestore, error) {
	var payload []byte
	var completedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT operation, completed_at FROM restore_history WHERE restore_id = $1`,
		restoreID).Scan(&payload, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query restore history: %w", err)
	}
	var op model.RestoreOperation
	if err := json.Unmarshal(payload, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal restore operation: %w", err)
	}
	return &ArchivedRestore{Operation: op, CompletedAt: completedAt}, nil
}

// List implements HistoryStore, newest first
func (s *PostgresHistoryStore) List(ctx context.Context, limit int) ([]*ArchivedRestore, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT operation, completed_at FROM restore_history ORDER BY completed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query restore history: %w", err)
	}
	defer rows.Close()

	var out []*ArchivedRestore
	for rows.Next() {
		var payload []byte
		var completedAt time.Time
		if err := rows.Scan(&payload, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan restore history row: %w", err)
		}
		var op model.RestoreOperation
		if err := json.Unmarshal(payload, &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal restore operation: %w", err)
		}
		out = append(out, &ArchivedRestore{Operation: op, CompletedAt: completedAt})
	}
	return out, rows.Err()
}

// Ping implements HistoryStore
func (s *PostgresHistoryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements HistoryStore
func (s *PostgresHistoryStore) Close() {
	s.pool.Close()
}
