// Package scoreboard keeps the results of finished games.
//
// Results live in a local SQLite file and can be mirrored to Postgres for
// long-term keeping. Games in progress are never stored.
package scoreboard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeFormat = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS games (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	room        TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL,
	secret      TEXT NOT NULL,
	won         INTEGER NOT NULL,
	lives_left  INTEGER NOT NULL,
	misses      TEXT NOT NULL DEFAULT '',
	turns       INTEGER NOT NULL,
	timeouts    INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_finished ON games(finished_at);

CREATE TABLE IF NOT EXISTS guesses (
	game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	turn    INTEGER NOT NULL,
	player  TEXT NOT NULL,
	letter  TEXT NOT NULL,
	hit     INTEGER NOT NULL,
	PRIMARY KEY (game_id, turn)
);
CREATE INDEX IF NOT EXISTS idx_guesses_player ON guesses(player);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Game modes.
const (
	ModePlayers = "players"
	ModeBot     = "bot"
)

// Game is a finished game.
type Game struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	Source     string    `json:"source"`
	Mode       string    `json:"mode"`
	Secret     string    `json:"secret"`
	Won        bool      `json:"won"`
	LivesLeft  int       `json:"lives_left"`
	Misses     string    `json:"misses"`
	Turns      int       `json:"turns"`
	Timeouts   int       `json:"timeouts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Guesses    []Guess   `json:"guesses,omitempty"`
}

// Guess is one answered turn of a game. Turns are numbered from 1.
type Guess struct {
	Turn   int    `json:"turn"`
	Player string `json:"player"`
	Letter string `json:"letter"`
	Hit    bool   `json:"hit"`
}

// PlayerScore aggregates a player's guesses over all stored games. Wins
// counts the games the player finished with the last letter.
type PlayerScore struct {
	Player  string `json:"player"`
	Guesses int    `json:"guesses"`
	Hits    int    `json:"hits"`
	Wins    int    `json:"wins"`
}

// Stats holds table counts.
type Stats struct {
	Games   int `json:"games"`
	Won     int `json:"won"`
	Lost    int `json:"lost"`
	Guesses int `json:"guesses"`
	Players int `json:"players"`
}

// Board is the local results ledger.
type Board struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Board, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create scoreboard dir: %w", err)
		}
	}

	// WAL for concurrent readers, foreign keys for guess cleanup
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open scoreboard db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping scoreboard db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init scoreboard schema: %w", err)
	}

	b := &Board{db: db, path: path}

	if stats, err := b.Stats(context.Background()); err == nil {
		slog.Info("scoreboard opened", "path", path, "games", stats.Games, "players", stats.Players)
	}
	return b, nil
}

// Close closes the database.
func (b *Board) Close() error {
	return b.db.Close()
}

// Path returns the database file path.
func (b *Board) Path() string { return b.path }

// RecordGame stores a finished game with its guesses.
func (b *Board) RecordGame(ctx context.Context, g Game) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO games (id, room, source, mode, secret, won, lives_left, misses, turns, timeouts, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Room, g.Source, g.Mode, g.Secret, g.Won, g.LivesLeft, g.Misses, g.Turns, g.Timeouts,
		g.StartedAt.UTC().Format(timeFormat), g.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}

	for _, gs := range g.Guesses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO guesses (game_id, turn, player, letter, hit) VALUES (?, ?, ?, ?, ?)`,
			g.ID, gs.Turn, gs.Player, gs.Letter, gs.Hit,
		)
		if err != nil {
			return fmt.Errorf("insert guess %s/%d: %w", g.ID, gs.Turn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit game %s: %w", g.ID, err)
	}
	slog.Debug("game recorded", "id", g.ID, "room", g.Room, "won", g.Won)
	return nil
}

const gameColumns = `seq, id, room, source, mode, secret, won, lives_left, misses, turns, timeouts, started_at, finished_at`

// RecentGames returns the latest finished games, newest first, without guesses.
func (b *Board) RecentGames(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// GamesAfter returns up to limit games with seq greater than after, oldest
// first, guesses included.
func (b *Board) GamesAfter(ctx context.Context, after int64, limit int) ([]Game, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE seq > ? ORDER BY seq LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("games after %d: %w", after, err)
	}
	games, err := scanGames(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range games {
		if games[i].Guesses, err = b.guesses(ctx, games[i].ID); err != nil {
			return nil, err
		}
	}
	return games, nil
}

func (b *Board) guesses(ctx context.Context, gameID string) ([]Guess, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT turn, player, letter, hit FROM guesses WHERE game_id = ? ORDER BY turn`, gameID)
	if err != nil {
		return nil, fmt.Errorf("guesses of %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []Guess
	for rows.Next() {
		var g Guess
		if err := rows.Scan(&g.Turn, &g.Player, &g.Letter, &g.Hit); err != nil {
			return nil, fmt.Errorf("scan guess: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGames(rows *sql.Rows) ([]Game, error) {
	var games []Game
	for rows.Next() {
		var g Game
		var started, finished string
		if err := rows.Scan(&g.Seq, &g.ID, &g.Room, &g.Source, &g.Mode, &g.Secret, &g.Won,
			&g.LivesLeft, &g.Misses, &g.Turns, &g.Timeouts, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g.StartedAt, _ = time.Parse(timeFormat, started)
		g.FinishedAt, _ = time.Parse(timeFormat, finished)
		games = append(games, g)
	}
	return games, rows.Err()
}

// Leaderboard ranks players by games finished, then letters found.
func (b *Board) Leaderboard(ctx context.Context, limit int) ([]PlayerScore, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT g.player,
		       COUNT(*),
		       SUM(g.hit),
		       SUM(CASE WHEN gm.won = 1 AND g.turn = gm.turns THEN 1 ELSE 0 END) AS wins
		FROM guesses g
		JOIN games gm ON gm.id = g.game_id
		GROUP BY g.player
		ORDER BY wins DESC, SUM(g.hit) DESC, COUNT(*) ASC, g.player
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []PlayerScore
	for rows.Next() {
		var s PlayerScore
		if err := rows.Scan(&s.Player, &s.Guesses, &s.Hits, &s.Wins); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats returns table counts.
func (b *Board) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(won), 0) FROM games`).Scan(&s.Games, &s.Won)
	if err != nil {
		return s, fmt.Errorf("game stats: %w", err)
	}
	s.Lost = s.Games - s.Won
	err = b.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT player) FROM guesses`).Scan(&s.Guesses, &s.Players)
	if err != nil {
		return s, fmt.Errorf("guess stats: %w", err)
	}
	return s, nil
}

// Prune deletes games finished before the cutoff. Their guesses go with them.
func (b *Board) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM games WHERE finished_at < ?`, before.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune games: %w", err)
	}
	return res.RowsAffected()
}

// KVGet retrieves a value, or "" when the key is unset.
func (b *Board) KVGet(ctx context.Context, key string) (string, error) {
	var value string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// KVSet stores a value.
func (b *Board) KVSet(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	return err
}
