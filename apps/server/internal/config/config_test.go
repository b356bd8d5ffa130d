package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyline/apps/server/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 4, cfg.Rooms.CodeLength)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.IdleTimeout)
	assert.Equal(t, string(ledger.BackendMemory), cfg.Ledger.Backend)
	assert.Equal(t, []int{3, 5, 7}, cfg.Commentary.Streaks)
	assert.False(t, cfg.Narrator.Enabled())

	wv := cfg.WordVote.Engine()
	assert.Equal(t, 90*time.Second, wv.SubmitTime)
	assert.NotEmpty(t, wv.Prompts)

	tv := cfg.Trivia.Engine()
	assert.Equal(t, 5, tv.QuestionsPerRound)
	assert.Equal(t, 3.0, tv.StreakCap)
}

func TestLoadNestedOverrides(t *testing.T) {
	t.Setenv("PARTYLINE_ADDR", ":9000")
	t.Setenv("PARTYLINE_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PARTYLINE_ROOM_IDLE_TIMEOUT", "2m")
	t.Setenv("PARTYLINE_LEDGER_BACKEND", "sqlite")
	t.Setenv("PARTYLINE_NARRATOR_API_KEY", "sk-test")
	t.Setenv("PARTYLINE_TRIVIA_REVEAL_DWELL", "1500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Rooms.IdleTimeout)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.True(t, cfg.Narrator.Enabled())
	assert.Equal(t, 1500*time.Millisecond, cfg.Trivia.Engine().RevealDwell)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		t.Setenv("PARTYLINE_ROOM_CODE_LENGTH", "four")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse env:")
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("PARTYLINE_LEDGER_BACKEND", "mongo")
		_, err := Load()
		assert.ErrorIs(t, err, ledger.ErrUnknownBackend)
	})
	t.Run("rounds out of range", func(t *testing.T) {
		t.Setenv("PARTYLINE_TRIVIA_ROUNDS", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRIVIA_ROUNDS")
	})
}
