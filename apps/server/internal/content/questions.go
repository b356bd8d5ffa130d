package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"partyline/apps/server/internal/room"
	"partyline/game/trivia"
)

type questionsRequest struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// Questions asks the generator for one round of questions.
func (c *Client) Questions(ctx context.Context, req room.QuestionRequest) ([]trivia.Question, error) {
	ctx, span := c.tracer.Start(ctx, "content.questions", trace.WithAttributes(
		attribute.String("trivia.category", req.Category),
		attribute.String("trivia.difficulty", req.Difficulty),
		attribute.Int("trivia.count", req.Count),
	))
	defer span.End()

	if c.questionsURL == "" {
		return nil, fail(span, ErrNotConfigured)
	}
	body, err := c.postJSON(ctx, span, c.questionsURL, questionsRequest{
		Category:   req.Category,
		Difficulty: req.Difficulty,
		Count:      req.Count,
	})
	if err != nil {
		return nil, fail(span, err)
	}
	questions, err := ParseQuestions(body, req)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("trivia.received", len(questions)))
	return questions, nil
}

// ParseQuestions reads either {"questions": [...]} or a bare array. Entries
// without text or a correct answer are skipped; category and difficulty
// default to the request's.
func ParseQuestions(body []byte, req room.QuestionRequest) ([]trivia.Question, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode questions: invalid JSON")
	}
	root := gjson.ParseBytes(body)
	list := root.Get("questions")
	if !list.Exists() && root.IsArray() {
		list = root
	}
	if !list.IsArray() {
		return nil, ErrEmptyBatch
	}

	var out []trivia.Question
	list.ForEach(func(_, q gjson.Result) bool {
		if req.Count > 0 && len(out) >= req.Count {
			return false
		}
		if parsed, ok := parseQuestion(q, req); ok {
			out = append(out, parsed)
		}
		return true
	})
	if len(out) == 0 {
		return nil, ErrEmptyBatch
	}
	return out, nil
}

func parseQuestion(q gjson.Result, req room.QuestionRequest) (trivia.Question, bool) {
	text := strings.TrimSpace(q.Get("text").String())
	answer := strings.TrimSpace(q.Get("correctAnswer").String())
	if text == "" || answer == "" {
		return trivia.Question{}, false
	}

	question := trivia.Question{
		Text:              text,
		CorrectAnswer:     answer,
		Options:           stringArray(q.Get("options")),
		AcceptableAnswers: stringArray(q.Get("acceptableAnswers")),
		PointValue:        int(q.Get("pointValue").Int()),
		Category:          firstNonEmpty(q.Get("category").String(), req.Category),
		Difficulty:        firstNonEmpty(q.Get("difficulty").String(), req.Difficulty),
	}
	if secs := q.Get("timeLimit").Float(); secs > 0 {
		question.TimeLimit = time.Duration(secs * float64(time.Second))
	}

	switch normalizeType(q.Get("type").String()) {
	case trivia.MultipleChoice:
		question.Type = trivia.MultipleChoice
	case trivia.FreeText:
		question.Type = trivia.FreeText
	default:
		if len(question.Options) > 0 {
			question.Type = trivia.MultipleChoice
		} else {
			question.Type = trivia.FreeText
		}
	}
	if question.Type == trivia.MultipleChoice && len(question.Options) == 0 {
		return trivia.Question{}, false
	}
	return question, true
}

func normalizeType(raw string) trivia.QuestionType {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	return trivia.QuestionType(t)
}

func stringArray(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, v := range r.Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
