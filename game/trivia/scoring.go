package trivia

import (
	"math"
	"strings"
	"time"
)

// CalculatePoints scores one correct answer:
//
//	floor((base + floor(maxSpeedBonus * max(0, 1-elapsed/limit))) * min(1+streak*0.5, streakCap))
//
// streak is the player's streak before this answer.
func CalculatePoints(base, maxSpeedBonus int, elapsed, limit time.Duration, streak int, streakCap float64) int {
	if base < 0 {
		base = 0
	}
	speed := 0
	if limit > 0 && elapsed < limit && maxSpeedBonus > 0 {
		if elapsed < 0 {
			elapsed = 0
		}
		// floor(bonus * (limit-elapsed) / limit), kept in integers
		speed = int(int64(maxSpeedBonus) * int64(limit-elapsed) / int64(limit))
	}
	if streak < 0 {
		streak = 0
	}
	mult := math.Min(1+float64(streak)*0.5, streakCap)
	if mult < 1 {
		mult = 1
	}
	return int(math.Floor(float64(base+speed) * mult))
}

// normalizeAnswer trims and lower-cases; inner spacing must match exactly.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchesChoice judges a multiple-choice answer locally.
func matchesChoice(q *Question, answer string) bool {
	return normalizeAnswer(answer) != "" && normalizeAnswer(answer) == normalizeAnswer(q.CorrectAnswer)
}
