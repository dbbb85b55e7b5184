// Package database persists user accounts and finished game results in
// Postgres. The pool is optional at runtime: when DB is nil the service runs
// without persistence, exactly like running without Redis.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool, nil when Postgres is not configured.
var DB *pgxpool.Pool

// ErrUserNotFound is returned by lookups for unknown usernames.
var ErrUserNotFound = errors.New("user not found")

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	DB = pool
	return nil
}

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	_, err := DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS game_results (
			session_id  UUID PRIMARY KEY,
			winner_id   UUID NOT NULL,
			loser_id    UUID NOT NULL,
			final_state JSONB,
			finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new account and returns its ID.
func CreateUser(ctx context.Context, username, passwordHash string) (uuid.UUID, error) {
	if DB == nil {
		return uuid.Nil, fmt.Errorf("database not connected")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, err
	}
	_, err = DB.Exec(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		id, username, passwordHash)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user %q: %w", username, err)
	}
	return id, nil
}

// GetUserByUsername returns the account ID and stored password hash.
func GetUserByUsername(ctx context.Context, username string) (uuid.UUID, string, error) {
	if DB == nil {
		return uuid.Nil, "", fmt.Errorf("database not connected")
	}
	var id uuid.UUID
	var hash string
	err := DB.QueryRow(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`, username).
		Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("query user %q: %w", username, err)
	}
	return id, hash, nil
}

// StoreGameResult records the outcome of a finished game together with a
// JSON snapshot of the final state for audit.
func StoreGameResult(ctx context.Context, sessionID, winnerID, loserID uuid.UUID, finalState interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	snapshot, err := json.Marshal(finalState)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	_, err = DB.Exec(ctx, `
		INSERT INTO game_results (session_id, winner_id, loser_id, final_state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		sessionID, winnerID, loserID, snapshot)
	if err != nil {
		return fmt.Errorf("insert game result %s: %w", sessionID, err)
	}
	return nil
}
