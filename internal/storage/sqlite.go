// Package storage provides SQLite-based persistence for finished session
// summaries and, optionally, the learned AI models.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/gamehub/internal/config"
	"github.com/vovakirdan/gamehub/internal/core"
	"github.com/vovakirdan/gamehub/internal/gameai"
	"github.com/vovakirdan/gamehub/internal/manager"
)

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// SessionSummary is one finished session.
type SessionSummary struct {
	ID         int64
	SessionID  string
	UserID     string
	GameID     string
	Reason     string
	FinalScore int
	BestScore  int
	Level      int
	Actions    int
	Succeeded  int
	Failed     int
	Duration   time.Duration
	Leaked     bool
	StartedAt  time.Time
	EndedAt    time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	dbPath = config.ExpandHome(dbPath)

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			game_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			final_score INTEGER NOT NULL DEFAULT 0,
			best_score INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			actions INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			leaked INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_game_id ON sessions(game_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_top ON sessions(game_id, final_score DESC);

		CREATE TABLE IF NOT EXISTS ai_models (
			game_id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertSession records a finished session.
// Returns the ID of the inserted record.
func (s *Store) InsertSession(ctx context.Context, sum SessionSummary) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions
		 (session_id, user_id, game_id, reason, final_score, best_score, level,
		  actions, succeeded, failed, duration_ms, leaked, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID,
		sum.UserID,
		sum.GameID,
		sum.Reason,
		sum.FinalScore,
		sum.BestScore,
		sum.Level,
		sum.Actions,
		sum.Succeeded,
		sum.Failed,
		sum.Duration.Milliseconds(),
		sum.Leaked,
		sum.StartedAt.UnixMilli(),
		sum.EndedAt.UnixMilli(),
	)
	if err != nil {
		return 0, core.Wrap(core.ErrPersistence, "storage: cannot save session", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

const sessionColumns = `id, session_id, user_id, game_id, reason, final_score, best_score, level,
		        actions, succeeded, failed, duration_ms, leaked, started_at, ended_at`

// RecentSessions returns the most recent sessions, newest first.
// An empty userID returns sessions of every user.
func (s *Store) RecentSessions(ctx context.Context, userID string, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE ? = '' OR user_id = ?
		 ORDER BY ended_at DESC, id DESC
		 LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query sessions: %w", err)
	}
	return scanSessions(rows)
}

// TopSessions returns the best-scoring sessions of a game.
func (s *Store) TopSessions(ctx context.Context, gameID string, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE game_id = ?
		 ORDER BY final_score DESC, id ASC
		 LIMIT ?`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query sessions: %w", err)
	}
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]SessionSummary, error) {
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var durationMS, startedAt, endedAt int64
		if err := rows.Scan(
			&sum.ID,
			&sum.SessionID,
			&sum.UserID,
			&sum.GameID,
			&sum.Reason,
			&sum.FinalScore,
			&sum.BestScore,
			&sum.Level,
			&sum.Actions,
			&sum.Succeeded,
			&sum.Failed,
			&durationMS,
			&sum.Leaked,
			&startedAt,
			&endedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		sum.StartedAt = time.UnixMilli(startedAt)
		sum.EndedAt = time.UnixMilli(endedAt)
		out = append(out, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return out, nil
}

// GameStats contains aggregated statistics for a game.
type GameStats struct {
	GameID       string
	Sessions     int
	HighScore    int
	AvgScore     float64
	TotalActions int64
	LastPlayed   time.Time
}

// GetGameStats retrieves aggregated statistics for a specific game.
func (s *Store) GetGameStats(ctx context.Context, gameID string) (*GameStats, error) {
	stats := &GameStats{GameID: gameID}

	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(final_score), 0), COALESCE(AVG(final_score), 0),
		        COALESCE(SUM(actions), 0), MAX(ended_at)
		 FROM sessions WHERE game_id = ?`,
		gameID,
	).Scan(&stats.Sessions, &stats.HighScore, &stats.AvgScore, &stats.TotalActions, &last)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get game stats: %w", err)
	}
	if last.Valid {
		stats.LastPlayed = time.UnixMilli(last.Int64)
	}

	return stats, nil
}

// GetAllGamesStats retrieves statistics for all games that have been played.
func (s *Store) GetAllGamesStats(ctx context.Context) (map[string]*GameStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id, COUNT(*), MAX(final_score), AVG(final_score), SUM(actions), MAX(ended_at)
		 FROM sessions
		 GROUP BY game_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get all games stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]*GameStats)
	for rows.Next() {
		var gs GameStats
		var last int64
		if err := rows.Scan(&gs.GameID, &gs.Sessions, &gs.HighScore, &gs.AvgScore, &gs.TotalActions, &last); err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		gs.LastPlayed = time.UnixMilli(last)
		stats[gs.GameID] = &gs
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return stats, nil
}

// SaveSessionSummary implements manager.SummarySaver.
// This adapter allows the manager to save summaries without direct storage dependency.
func (s *Store) SaveSessionSummary(ctx context.Context, rec manager.SessionRecord) error {
	_, err := s.InsertSession(ctx, SessionSummary{
		SessionID:  rec.SessionID,
		UserID:     rec.UserID,
		GameID:     rec.GameID,
		Reason:     rec.Reason,
		FinalScore: rec.FinalScore,
		BestScore:  rec.BestScore,
		Level:      rec.Level,
		Actions:    rec.Actions,
		Succeeded:  rec.Succeeded,
		Failed:     rec.Failed,
		Duration:   rec.Duration,
		Leaked:     rec.Leaked,
		StartedAt:  rec.StartedAt,
		EndedAt:    rec.EndedAt,
	})
	return err
}

// Ensure Store implements SummarySaver
var _ manager.SummarySaver = (*Store)(nil)

// Load implements gameai.ModelStore.
func (s *Store) Load(ctx context.Context, gameID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM ai_models WHERE game_id = ?",
		gameID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gameai.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load model %s: %w", gameID, err)
	}
	return data, nil
}

// Save implements gameai.ModelStore. One row per game, replaced on save.
func (s *Store) Save(ctx context.Context, gameID string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_models (game_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(game_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		gameID, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return core.Wrap(core.ErrPersistence, "storage: cannot save model "+gameID, err)
	}
	return nil
}

// Ensure Store implements ModelStore
var _ gameai.ModelStore = (*Store)(nil)
