// Package config loads server configuration from PARTYLINE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"partyline/apps/server/internal/ledger"
	"partyline/apps/server/internal/validate"
	"partyline/commentary"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

const Prefix = "PARTYLINE_"

type Config struct {
	Addr           string   `env:"ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Rooms      Rooms      `envPrefix:"ROOM_"`
	Ledger     Ledger     `envPrefix:"LEDGER_"`
	Content    Content    `envPrefix:"CONTENT_"`
	Narrator   Narrator   `envPrefix:"NARRATOR_"`
	Commentary Commentary `envPrefix:"COMMENTARY_"`
	WordVote   WordVote   `envPrefix:"WORDVOTE_"`
	Trivia     Trivia     `envPrefix:"TRIVIA_"`
}

type Rooms struct {
	CodeLength    int           `env:"CODE_LENGTH" envDefault:"4"`
	MaxNameLength int           `env:"MAX_NAME_LENGTH" envDefault:"24"`
	MaxTextLength int           `env:"MAX_TEXT_LENGTH" envDefault:"280"`
	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	IdleBuffer    time.Duration `env:"IDLE_BUFFER" envDefault:"5m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	CallTimeout   time.Duration `env:"CALL_TIMEOUT" envDefault:"15s"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	SendBuffer    int           `env:"SEND_BUFFER" envDefault:"256"`
}

type Ledger struct {
	Backend     string `env:"BACKEND" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/partyline.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	ListLimit   int    `env:"LIST_LIMIT" envDefault:"20"`
}

type Content struct {
	QuestionsURL string        `env:"QUESTIONS_URL"`
	JudgeURL     string        `env:"JUDGE_URL"`
	APIKey       string        `env:"API_KEY"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"20s"`
}

type Narrator struct {
	APIKey      string        `env:"API_KEY"`
	BaseURL     string        `env:"BASE_URL"`
	Model       string        `env:"MODEL" envDefault:"gpt-4o-mini"`
	MaxTokens   int           `env:"MAX_TOKENS" envDefault:"80"`
	Temperature float64       `env:"TEMPERATURE" envDefault:"0.9"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"0"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"8s"`
	MaxChars    int           `env:"MAX_CHARS" envDefault:"200"`
}

// Enabled reports whether a text generation endpoint is configured.
func (n Narrator) Enabled() bool {
	return n.APIKey != "" || n.BaseURL != ""
}

type Commentary struct {
	MinInterval time.Duration `env:"MIN_INTERVAL" envDefault:"4s"`
	PerMinute   int           `env:"PER_MINUTE" envDefault:"8"`
	PerGame     int           `env:"PER_GAME" envDefault:"60"`
	PersonaFile string        `env:"PERSONA_FILE"`
	Seed        int64         `env:"SEED"`
	IdleAfter   time.Duration `env:"IDLE_AFTER" envDefault:"30s"`
	FastAnswer  time.Duration `env:"FAST_ANSWER" envDefault:"3s"`
	Streaks     []int         `env:"STREAK_THRESHOLDS" envSeparator:"," envDefault:"3,5,7"`
}

func (c Commentary) Limiter() commentary.LimiterConfig {
	return commentary.LimiterConfig{
		MinInterval: c.MinInterval,
		PerMinute:   c.PerMinute,
		PerGame:     c.PerGame,
	}
}

type WordVote struct {
	Rounds        int           `env:"ROUNDS" envDefault:"3"`
	PointsPerVote int           `env:"POINTS_PER_VOTE" envDefault:"100"`
	SubmitTime    time.Duration `env:"SUBMIT_TIME" envDefault:"90s"`
	VoteTime      time.Duration `env:"VOTE_TIME" envDefault:"45s"`
}

func (w WordVote) Engine() wordvote.Config {
	cfg := wordvote.DefaultConfig()
	cfg.MaxRounds = w.Rounds
	cfg.PointsPerVote = w.PointsPerVote
	cfg.SubmitTime = w.SubmitTime
	cfg.VoteTime = w.VoteTime
	return cfg
}

type Trivia struct {
	Rounds            int           `env:"ROUNDS" envDefault:"3"`
	QuestionsPerRound int           `env:"QUESTIONS_PER_ROUND" envDefault:"5"`
	MaxSpeedBonus     int           `env:"MAX_SPEED_BONUS" envDefault:"50"`
	StreakCap         float64       `env:"STREAK_CAP" envDefault:"3"`
	TimeLimit         time.Duration `env:"TIME_LIMIT" envDefault:"20s"`
	Points            int           `env:"POINTS" envDefault:"100"`
	CategoryDwell     time.Duration `env:"CATEGORY_DWELL" envDefault:"4s"`
	RevealDwell       time.Duration `env:"REVEAL_DWELL" envDefault:"5s"`
	LeaderboardDwell  time.Duration `env:"LEADERBOARD_DWELL" envDefault:"5s"`
	RoundResultsDwell time.Duration `env:"ROUND_RESULTS_DWELL" envDefault:"8s"`
	Category          string        `env:"CATEGORY" envDefault:"general knowledge"`
	Difficulty        string        `env:"DIFFICULTY" envDefault:"medium"`
}

func (t Trivia) Engine() trivia.Config {
	return trivia.Config{
		MaxRounds:         t.Rounds,
		QuestionsPerRound: t.QuestionsPerRound,
		MaxSpeedBonus:     t.MaxSpeedBonus,
		StreakCap:         t.StreakCap,
		DefaultTimeLimit:  t.TimeLimit,
		DefaultPoints:     t.Points,
		CategoryDwell:     t.CategoryDwell,
		RevealDwell:       t.RevealDwell,
		LeaderboardDwell:  t.LeaderboardDwell,
		RoundResultsDwell: t.RoundResultsDwell,
		Category:          t.Category,
		Difficulty:        t.Difficulty,
	}
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Rooms.CodeLength < 3 || c.Rooms.CodeLength > 12 {
		errs = append(errs, fmt.Errorf("%sROOM_CODE_LENGTH must be between 3 and 12", Prefix))
	}
	if c.Rooms.MaxNameLength <= 0 || c.Rooms.MaxTextLength <= 0 {
		errs = append(errs, fmt.Errorf("%sROOM_MAX_NAME_LENGTH and MAX_TEXT_LENGTH must be > 0", Prefix))
	}
	if c.Rooms.SweepInterval <= 0 || c.Rooms.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("%sROOM_SWEEP_INTERVAL and TICK_INTERVAL must be > 0", Prefix))
	}
	switch ledger.Backend(c.Ledger.Backend) {
	case ledger.BackendMemory, ledger.BackendSQLite, ledger.BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("%sLEDGER_BACKEND: %w: %q", Prefix, ledger.ErrUnknownBackend, c.Ledger.Backend))
	}
	if c.WordVote.Rounds <= 0 || c.WordVote.Rounds > validate.MaxRounds {
		errs = append(errs, fmt.Errorf("%sWORDVOTE_ROUNDS must be between 1 and %d", Prefix, validate.MaxRounds))
	}
	if c.Trivia.Rounds <= 0 || c.Trivia.Rounds > validate.MaxRounds {
		errs = append(errs, fmt.Errorf("%sTRIVIA_ROUNDS must be between 1 and %d", Prefix, validate.MaxRounds))
	}
	if c.Commentary.PerMinute <= 0 || c.Commentary.PerGame <= 0 {
		errs = append(errs, fmt.Errorf("%sCOMMENTARY_PER_MINUTE and PER_GAME must be > 0", Prefix))
	}
	return errors.Join(errs...)
}
