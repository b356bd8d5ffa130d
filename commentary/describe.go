package commentary

import (
	"fmt"
	"sort"
	"strings"

	"partyline/events"
)

// describe renders an event as plain prose for the generator. Every
// user supplied name passes through SanitizeName, the category through
// SanitizeCategory.
func describe(ev events.Event) string {
	c := ev.Context
	who := SanitizeName(c.PlayerName)
	category := SanitizeCategory(c.Category)
	var b strings.Builder
	switch ev.Type {
	case events.GameStarted:
		fmt.Fprintf(&b, "A new %s game just started with %s.", c.GameType, joinNames(c.PlayerNames))
	case events.GameComplete:
		fmt.Fprintf(&b, "The game is over. Final scores: %s.", scoreLine(c.Scores))
	case events.PhaseChanged:
		fmt.Fprintf(&b, "The game moved from %s to %s in round %d.", c.PreviousPhase, c.Phase, c.Round)
	case events.PlayerJoined:
		fmt.Fprintf(&b, "%s just joined the room.", who)
	case events.PlayerLeft:
		fmt.Fprintf(&b, "%s just left the room.", who)
	case events.SubmissionReceived:
		fmt.Fprintf(&b, "%s locked in an answer.", who)
	case events.AllSubmitted:
		b.WriteString("Everyone has submitted. Time to vote.")
	case events.VoteReceived:
		fmt.Fprintf(&b, "%s cast a vote.", who)
	case events.AllVoted:
		b.WriteString("All votes are in.")
	case events.RoundComplete:
		fmt.Fprintf(&b, "Round %d is complete. Points this round: %s. Standings: %s.", c.Round, scoreLine(c.RoundResults), scoreLine(c.Scores))
	case events.CategoryAnnounced:
		fmt.Fprintf(&b, "Round %d category: %s.", c.Round, category)
	case events.QuestionDisplayed:
		fmt.Fprintf(&b, "The next %s question is up.", category)
	case events.AnswerRevealed:
		if len(c.CorrectPlayers) == 0 {
			fmt.Fprintf(&b, "The answer was %q and nobody got it.", c.Answer)
		} else {
			fmt.Fprintf(&b, "The answer was %q. Correct: %s.", c.Answer, joinNames(c.CorrectPlayers))
		}
	case events.HotStreak:
		fmt.Fprintf(&b, "%s has answered %d in a row correctly.", who, c.Streak)
	case events.FastAnswer:
		fmt.Fprintf(&b, "%s answered correctly in %.1f seconds.", who, float64(c.ElapsedMs)/1000)
	case events.Idle:
		fmt.Fprintf(&b, "Nothing has happened for a while during the %s phase.", c.Phase)
	default:
		fmt.Fprintf(&b, "Something happened: %s.", ev.Type)
	}
	return b.String()
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "nobody"
	}
	return strings.Join(sanitizeAll(names), ", ")
}

func scoreLine(scores map[string]int) string {
	if len(scores) == 0 {
		return "none"
	}
	names := make([]string, 0, len(scores))
	for n := range scores {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s %d", SanitizeName(n), scores[n])
	}
	return strings.Join(parts, ", ")
}

func emotionFor(t events.Type) string {
	switch t {
	case events.GameStarted, events.HotStreak, events.FastAnswer, events.GameComplete:
		return "excited"
	case events.PlayerLeft:
		return "disappointed"
	case events.Idle:
		return "impatient"
	case events.AnswerRevealed, events.RoundComplete:
		return "dramatic"
	}
	return "neutral"
}
