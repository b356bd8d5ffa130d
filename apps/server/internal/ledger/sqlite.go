package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	sqlStore
}

func NewSQLiteService(dbPath string, listLimit int) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{sqlStore{db: db, listLimit: normalizeListLimit(listLimit)}}, nil
}

var sqliteSchema = []string{
	`
CREATE TABLE IF NOT EXISTS partyline_rooms (
    code TEXT PRIMARY KEY,
    created_at_ms INTEGER NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS partyline_rounds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_code TEXT NOT NULL,
    game_type TEXT NOT NULL,
    round INTEGER NOT NULL,
    results_json TEXT NOT NULL DEFAULT '{}',
    scores_json TEXT NOT NULL DEFAULT '{}',
    completed_at_ms INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_partyline_rounds_room ON partyline_rounds(room_code, completed_at_ms DESC)`,
	`
CREATE TABLE IF NOT EXISTS partyline_submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_code TEXT NOT NULL,
    round INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    player_name TEXT NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS partyline_votes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_code TEXT NOT NULL,
    round INTEGER NOT NULL,
    voter_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL
)`,
}
