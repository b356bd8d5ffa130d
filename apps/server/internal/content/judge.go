package content

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"partyline/apps/server/internal/room"
)

type judgeRequest struct {
	QuestionText      string   `json:"questionText"`
	CorrectAnswer     string   `json:"correctAnswer"`
	PlayerAnswer      string   `json:"playerAnswer"`
	AcceptableAnswers []string `json:"acceptableAnswers"`
}

// Judge asks the arbiter whether a free-text answer is correct. Callers treat
// any error as an incorrect answer.
func (c *Client) Judge(ctx context.Context, req room.JudgeRequest) (room.Verdict, error) {
	ctx, span := c.tracer.Start(ctx, "content.judge")
	defer span.End()

	if c.judgeURL == "" {
		return room.Verdict{}, fail(span, ErrNotConfigured)
	}
	acceptable := req.Acceptable
	if acceptable == nil {
		acceptable = []string{}
	}
	body, err := c.postJSON(ctx, span, c.judgeURL, judgeRequest{
		QuestionText:      req.Question,
		CorrectAnswer:     req.CorrectAnswer,
		PlayerAnswer:      req.Answer,
		AcceptableAnswers: acceptable,
	})
	if err != nil {
		return room.Verdict{}, fail(span, err)
	}
	verdict, err := ParseVerdict(body)
	if err != nil {
		return room.Verdict{}, fail(span, err)
	}
	span.SetAttributes(
		attribute.Bool("judge.correct", verdict.IsCorrect),
		attribute.Float64("judge.confidence", verdict.Confidence),
	)
	return verdict, nil
}

// ParseVerdict reads {"isCorrect": bool, "confidence": number}. Confidence is
// clamped to [0, 1].
func ParseVerdict(body []byte) (room.Verdict, error) {
	if !gjson.ValidBytes(body) {
		return room.Verdict{}, fmt.Errorf("decode verdict: invalid JSON")
	}
	correct := gjson.GetBytes(body, "isCorrect")
	if !correct.Exists() {
		return room.Verdict{}, fmt.Errorf("decode verdict: missing isCorrect")
	}
	confidence := gjson.GetBytes(body, "confidence").Float()
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return room.Verdict{IsCorrect: correct.Bool(), Confidence: confidence}, nil
}
