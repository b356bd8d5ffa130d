package game

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const DefaultPlayerName = "Player"

// Player is the canonical record of a participant in one room.
// Score is only ever changed through the owning Roster.
type Player struct {
	ID        string
	Name      string
	RoomCode  string
	Score     int
	Connected bool
	SessionID string
}

// CleanName folds a user supplied display name to NFC, strips control
// characters, collapses whitespace and clamps it to maxRunes.
func CleanName(raw string, maxRunes int) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxRunes]))
	}
	if s == "" {
		return DefaultPlayerName
	}
	return s
}
