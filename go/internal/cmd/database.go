package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/studyhall/go/internal/dbconfig"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return database, nil
}

// bootstrapSchema creates the tables on first boot. Statements are
// idempotent so repeated boots are safe.
func bootstrapSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			user_name    TEXT NOT NULL,
			display_name TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			subject     TEXT,
			description TEXT,
			is_private  BOOLEAN NOT NULL DEFAULT false,
			join_code   TEXT,
			owner_id    TEXT NOT NULL REFERENCES users(id),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS room_members (
			room_id   UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			user_id   TEXT NOT NULL REFERENCES users(id),
			role      TEXT NOT NULL DEFAULT 'member',
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (room_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         UUID PRIMARY KEY,
			room_id    UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created
			ON messages (room_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS room_tasks (
			id         UUID PRIMARY KEY,
			room_id    UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'todo',
			due_at     TIMESTAMPTZ,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS polls (
			id         UUID PRIMARY KEY,
			room_id    UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			question   TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL,
			is_closed  BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS poll_options (
			id       UUID PRIMARY KEY,
			poll_id  UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			text     TEXT NOT NULL,
			position INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS poll_votes (
			poll_id    UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			option_id  UUID NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (poll_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS study_sessions (
			id               UUID PRIMARY KEY,
			room_id          UUID NOT NULL,
			user_id          TEXT NOT NULL,
			phase            TEXT NOT NULL,
			duration_seconds INT NOT NULL,
			started_at       TIMESTAMPTZ NOT NULL,
			ended_at         TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_study_sessions_user
			ON study_sessions (user_id, phase, started_at)`,
		`CREATE TABLE IF NOT EXISTS badges (
			id          SERIAL PRIMARY KEY,
			key         TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			description TEXT NOT NULL,
			icon        TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id    TEXT NOT NULL,
			badge_id   INT NOT NULL REFERENCES badges(id),
			awarded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, badge_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return nil
}
