package trivia

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePoints(t *testing.T) {
	limit := 10 * time.Second
	tests := []struct {
		name    string
		elapsed time.Duration
		streak  int
		want    int
	}{
		{"instant", 0, 0, 150},
		{"one second", time.Second, 0, 145},
		{"nine seconds", 9 * time.Second, 0, 105},
		{"at limit", limit, 0, 100},
		{"past limit", 15 * time.Second, 0, 100},
		{"streak one", time.Second, 1, 217},
		{"streak two", time.Second, 2, 290},
		{"streak capped", time.Second, 10, 435},
		{"negative elapsed", -time.Second, 0, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculatePoints(100, 50, tt.elapsed, limit, tt.streak, 3.0))
		})
	}
}

func TestCalculatePointsMonotonic(t *testing.T) {
	limit := 20 * time.Second
	prev := CalculatePoints(100, 50, 0, limit, 0, 3.0)
	for e := 2 * time.Second; e <= limit; e += 2 * time.Second {
		got := CalculatePoints(100, 50, e, limit, 0, 3.0)
		assert.Less(t, got, prev, "elapsed %s", e)
		assert.GreaterOrEqual(t, got, 0)
		prev = got
	}

	prev = CalculatePoints(100, 50, 5*time.Second, limit, 0, 3.0)
	for streak := 1; streak <= 4; streak++ {
		got := CalculatePoints(100, 50, 5*time.Second, limit, streak, 3.0)
		assert.Greater(t, got, prev, "streak %d", streak)
		prev = got
	}
}

func TestCalculatePointsNeverNegative(t *testing.T) {
	assert.Equal(t, 0, CalculatePoints(-10, 0, time.Hour, time.Second, -3, 3.0))
	assert.Equal(t, 0, CalculatePoints(0, 50, time.Second, 0, 0, 3.0))
}

func TestMatchesChoice(t *testing.T) {
	q := &Question{CorrectAnswer: "Mount Everest"}
	assert.True(t, matchesChoice(q, " mount everest "))
	assert.False(t, matchesChoice(q, "K2"))
	assert.False(t, matchesChoice(q, "mount  everest"), "inner spacing is not folded")
	assert.False(t, matchesChoice(&Question{CorrectAnswer: ""}, ""))
}
