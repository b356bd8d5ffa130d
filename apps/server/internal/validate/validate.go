// Package validate checks client input at the transport boundary. Values
// that pass are trimmed and normalized; rooms assume validated input.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RoomCodeAlphabet excludes I, O, 0 and 1.
const RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultRoomCodeLength = 4
	DefaultMaxNameLength  = 24
	DefaultMaxTextLength  = 280
	MaxRounds             = 20
)

// Error reports a rejected field. Reason is safe to show to the client.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func fail(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RoomCode returns the upper-cased code when it has exactly length
// characters from RoomCodeAlphabet.
func RoomCode(raw string, length int) (string, error) {
	if length <= 0 {
		length = DefaultRoomCodeLength
	}
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fail("room", "room code is required")
	}
	if utf8.RuneCountInString(code) != length {
		return "", fail("room", "room code must be %d characters", length)
	}
	for _, r := range code {
		if !strings.ContainsRune(RoomCodeAlphabet, r) {
			return "", fail("room", "room code contains %q", r)
		}
	}
	return code, nil
}

// Name validates a player display name.
func Name(raw string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxNameLength
	}
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fail("name", "name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return "", fail("name", "name is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > maxRunes {
		return "", fail("name", "name too long (max %d characters)", maxRunes)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fail("name", "name contains control characters")
		}
	}
	return name, nil
}

// Text validates free-form player input such as submissions and answers.
// Newlines are allowed; other control characters are not.
func Text(field, raw string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxTextLength
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fail(field, "%s cannot be empty", field)
	}
	if !utf8.ValidString(text) {
		return "", fail(field, "%s is not valid UTF-8", field)
	}
	if n := utf8.RuneCountInString(text); n > maxRunes {
		return "", fail(field, "%s too long (max %d characters)", field, maxRunes)
	}
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return "", fail(field, "%s contains control characters", field)
		}
	}
	return text, nil
}

// Rounds accepts zero (use the game default) or 1..MaxRounds.
func Rounds(n int) error {
	if n < 0 || n > MaxRounds {
		return fail("rounds", "rounds must be between 1 and %d", MaxRounds)
	}
	return nil
}

// Required rejects blank identifiers such as game types and vote targets.
func Required(field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fail(field, "%s is required", field)
	}
	if len(v) > 128 {
		return "", fail(field, "%s too long", field)
	}
	return v, nil
}
