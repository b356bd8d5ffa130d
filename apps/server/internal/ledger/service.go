package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

var ErrUnknownBackend = errors.New("unknown ledger backend")

// Service records room history. Writes are fire-and-forget from the room's
// point of view: callers run them off the room goroutine and only log errors.
type Service interface {
	Close() error
	RecordRoom(ctx context.Context, rec RoomRecord) error
	RecordRound(ctx context.Context, rec RoundRecord) error
	RecordSubmission(ctx context.Context, rec SubmissionRecord) error
	RecordVote(ctx context.Context, rec VoteRecord) error
	ListRounds(ctx context.Context, roomCode string, limit int) ([]RoundItem, error)
}

type RoomRecord struct {
	Code      string
	CreatedAt time.Time
}

type RoundRecord struct {
	RoomCode    string
	GameType    string
	Round       int
	Results     map[string]int
	Scores      map[string]int
	CompletedAt time.Time
}

type SubmissionRecord struct {
	RoomCode   string
	Round      int
	PlayerID   string
	PlayerName string
	Prompt     string
	Text       string
	At         time.Time
}

type VoteRecord struct {
	RoomCode string
	Round    int
	VoterID  string
	TargetID string
	At       time.Time
}

type RoundItem struct {
	RoomCode    string         `json:"room_code"`
	GameType    string         `json:"game_type"`
	Round       int            `json:"round"`
	Results     map[string]int `json:"results"`
	Scores      map[string]int `json:"scores"`
	CompletedAt time.Time      `json:"completed_at"`
}

type Options struct {
	Backend     Backend
	SQLitePath  string
	PostgresDSN string
	ListLimit   int
}

// New opens the backend named by opts and returns it together with a short
// label for startup logging.
func New(opts Options) (Service, string, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(string(opts.Backend)))) {
	case "", BackendMemory:
		return NewNoop(), "memory-noop", nil
	case BackendSQLite:
		svc, err := NewSQLiteService(opts.SQLitePath, opts.ListLimit)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite ledger: %w", err)
		}
		return svc, "sqlite", nil
	case BackendPostgres:
		svc, err := NewPostgresService(opts.PostgresDSN, opts.ListLimit)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres ledger: %w", err)
		}
		return svc, "postgres", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

type noopService struct{}

func NewNoop() Service { return &noopService{} }

func (n *noopService) Close() error { return nil }

func (n *noopService) RecordRoom(_ context.Context, _ RoomRecord) error { return nil }

func (n *noopService) RecordRound(_ context.Context, _ RoundRecord) error { return nil }

func (n *noopService) RecordSubmission(_ context.Context, _ SubmissionRecord) error { return nil }

func (n *noopService) RecordVote(_ context.Context, _ VoteRecord) error { return nil }

func (n *noopService) ListRounds(_ context.Context, _ string, _ int) ([]RoundItem, error) {
	return []RoundItem{}, nil
}

// sqlStore holds the queries shared by the sqlite and postgres backends.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db        *sql.DB
	numbered  bool
	listLimit int
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) RecordRoom(ctx context.Context, rec RoomRecord) error {
	if strings.TrimSpace(rec.Code) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO partyline_rooms (code, created_at_ms)
VALUES (?, ?)
ON CONFLICT (code) DO NOTHING
`), rec.Code, millis(rec.CreatedAt))
	return err
}

func (s *sqlStore) RecordRound(ctx context.Context, rec RoundRecord) error {
	results, err := json.Marshal(nonNil(rec.Results))
	if err != nil {
		return fmt.Errorf("marshal round results: %w", err)
	}
	scores, err := json.Marshal(nonNil(rec.Scores))
	if err != nil {
		return fmt.Errorf("marshal round scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.bind(`
INSERT INTO partyline_rounds (room_code, game_type, round, results_json, scores_json, completed_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
`), rec.RoomCode, rec.GameType, rec.Round, string(results), string(scores), millis(rec.CompletedAt))
	return err
}

func (s *sqlStore) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO partyline_submissions (room_code, round, player_id, player_name, prompt, text, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
`), rec.RoomCode, rec.Round, rec.PlayerID, rec.PlayerName, rec.Prompt, rec.Text, millis(rec.At))
	return err
}

func (s *sqlStore) RecordVote(ctx context.Context, rec VoteRecord) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO partyline_votes (room_code, round, voter_id, target_id, created_at_ms)
VALUES (?, ?, ?, ?, ?)
`), rec.RoomCode, rec.Round, rec.VoterID, rec.TargetID, millis(rec.At))
	return err
}

func (s *sqlStore) ListRounds(ctx context.Context, roomCode string, limit int) ([]RoundItem, error) {
	if strings.TrimSpace(roomCode) == "" {
		return []RoundItem{}, nil
	}
	if limit <= 0 || limit > maxListLimit {
		limit = s.listLimit
	}

	rows, err := s.db.QueryContext(ctx, s.bind(`
SELECT room_code, game_type, round, results_json, scores_json, completed_at_ms
FROM partyline_rounds
WHERE room_code = ?
ORDER BY completed_at_ms DESC, id DESC
LIMIT ?
`), roomCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]RoundItem, 0, limit)
	for rows.Next() {
		var item RoundItem
		var resultsRaw, scoresRaw string
		var completedMs int64
		if err := rows.Scan(&item.RoomCode, &item.GameType, &item.Round, &resultsRaw, &scoresRaw, &completedMs); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(resultsRaw), &item.Results)
		_ = json.Unmarshal([]byte(scoresRaw), &item.Scores)
		if item.Results == nil {
			item.Results = map[string]int{}
		}
		if item.Scores == nil {
			item.Scores = map[string]int{}
		}
		item.CompletedAt = time.UnixMilli(completedMs).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func ensureSchema(ctx context.Context, db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func normalizeListLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UTC().UnixMilli()
	}
	return t.UTC().UnixMilli()
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
