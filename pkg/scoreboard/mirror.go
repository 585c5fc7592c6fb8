package scoreboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Mirror archives finished games in Postgres.
type Mirror struct {
	pool *pgxpool.Pool
}

// NewMirror connects to Postgres and verifies the connection.
func NewMirror(ctx context.Context, pgURL string) (*Mirror, error) {
	config, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Mirror{pool: pool}, nil
}

// Init creates the archive tables if they don't exist.
func (m *Mirror) Init(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pendu_games (
			id          TEXT PRIMARY KEY,
			seq         BIGINT NOT NULL,
			room        TEXT NOT NULL,
			source      TEXT NOT NULL,
			mode        TEXT NOT NULL,
			secret      TEXT NOT NULL,
			won         BOOLEAN NOT NULL,
			lives_left  INTEGER NOT NULL,
			misses      TEXT NOT NULL,
			turns       INTEGER NOT NULL,
			timeouts    INTEGER NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			mirrored_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create games table: %w", err)
	}

	_, err = m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pendu_guesses (
			game_id TEXT NOT NULL REFERENCES pendu_games(id) ON DELETE CASCADE,
			turn    INTEGER NOT NULL,
			player  TEXT NOT NULL,
			letter  TEXT NOT NULL,
			hit     BOOLEAN NOT NULL,
			PRIMARY KEY (game_id, turn)
		)
	`)
	if err != nil {
		return fmt.Errorf("create guesses table: %w", err)
	}

	slog.Info("scoreboard mirror initialized")
	return nil
}

// Close closes the connection pool.
func (m *Mirror) Close() {
	m.pool.Close()
}

// LastSeq returns the highest local sequence number already mirrored.
func (m *Mirror) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := m.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM pendu_games`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last mirrored seq: %w", err)
	}
	return seq, nil
}

// InsertBatch archives games and their guesses in one transaction.
// Games already present are left untouched.
func (m *Mirror) InsertBatch(ctx context.Context, games []Game) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, g := range games {
		tag, err := tx.Exec(ctx, `
			INSERT INTO pendu_games (id, seq, room, source, mode, secret, won, lives_left, misses, turns, timeouts, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING
		`, g.ID, g.Seq, g.Room, g.Source, g.Mode, g.Secret, g.Won, g.LivesLeft, g.Misses, g.Turns, g.Timeouts, g.StartedAt, g.FinishedAt)
		if err != nil {
			return fmt.Errorf("insert game %s: %w", g.ID, err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}

		for _, gs := range g.Guesses {
			_, err := tx.Exec(ctx, `
				INSERT INTO pendu_guesses (game_id, turn, player, letter, hit)
				VALUES ($1, $2, $3, $4, $5)
			`, g.ID, gs.Turn, gs.Player, gs.Letter, gs.Hit)
			if err != nil {
				return fmt.Errorf("insert guess %s/%d: %w", g.ID, gs.Turn, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of archived games.
func (m *Mirror) Count(ctx context.Context) (count int, err error) {
	err = m.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pendu_games").Scan(&count)
	return
}
