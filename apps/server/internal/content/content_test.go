package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyline/apps/server/internal/room"
	"partyline/game/trivia"
)

func TestQuestionsPostsRequestAndParsesEnvelope(t *testing.T) {
	var got questionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":[
			{"text":"Capital of France?","type":"multiple_choice","correctAnswer":"Paris","options":["Paris","Rome"],"timeLimit":15,"pointValue":200},
			{"text":"Name a primary colour","type":"free-text","correctAnswer":"red","acceptableAnswers":["blue","yellow"]},
			{"text":"","correctAnswer":"skipped"}
		]}`))
	}))
	defer srv.Close()

	c := New(Options{QuestionsURL: srv.URL, APIKey: "secret"})
	qs, err := c.Questions(context.Background(), room.QuestionRequest{Category: "geo", Difficulty: "easy", Count: 5})
	require.NoError(t, err)

	assert.Equal(t, questionsRequest{Category: "geo", Difficulty: "easy", Count: 5}, got)
	require.Len(t, qs, 2)
	assert.Equal(t, trivia.MultipleChoice, qs[0].Type)
	assert.Equal(t, 15*time.Second, qs[0].TimeLimit)
	assert.Equal(t, 200, qs[0].PointValue)
	assert.Equal(t, "geo", qs[0].Category)
	assert.Equal(t, trivia.FreeText, qs[1].Type)
	assert.Equal(t, []string{"blue", "yellow"}, qs[1].AcceptableAnswers)
}

func TestParseQuestionsAcceptsBareArrayAndCapsCount(t *testing.T) {
	body := []byte(`[
		{"text":"Q1","correctAnswer":"a","options":["a","b"]},
		{"text":"Q2","correctAnswer":"b"},
		{"text":"Q3","correctAnswer":"c"}
	]`)
	qs, err := ParseQuestions(body, room.QuestionRequest{Count: 2})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, trivia.MultipleChoice, qs[0].Type)
	assert.Equal(t, trivia.FreeText, qs[1].Type)
}

func TestParseQuestionsRejectsEmptyOrInvalid(t *testing.T) {
	cases := map[string]string{
		"empty list":        `{"questions":[]}`,
		"no questions key":  `{"items":[{"text":"Q","correctAnswer":"a"}]}`,
		"choice no options": `[{"text":"Q","type":"multiple_choice","correctAnswer":"a"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuestions([]byte(body), room.QuestionRequest{})
			assert.ErrorIs(t, err, ErrEmptyBatch)
		})
	}

	_, err := ParseQuestions([]byte(`{not json`), room.QuestionRequest{})
	assert.Error(t, err)
}

func TestQuestionsNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Options{QuestionsURL: srv.URL}).Questions(context.Background(), room.QuestionRequest{Count: 1})
	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusServiceUnavailable, status.Status)
	assert.Contains(t, status.Body, "model overloaded")
}

func TestUnconfiguredClientFails(t *testing.T) {
	c := New(Options{})
	_, err := c.Questions(context.Background(), room.QuestionRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Judge(context.Background(), room.JudgeRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestJudgeSendsAnswerAndReadsVerdict(t *testing.T) {
	var got judgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"isCorrect":true,"confidence":0.87}`))
	}))
	defer srv.Close()

	v, err := New(Options{JudgeURL: srv.URL}).Judge(context.Background(), room.JudgeRequest{
		Question:      "Largest planet?",
		CorrectAnswer: "Jupiter",
		Answer:        "jupiter",
	})
	require.NoError(t, err)
	assert.True(t, v.IsCorrect)
	assert.InDelta(t, 0.87, v.Confidence, 1e-9)
	assert.Equal(t, "jupiter", got.PlayerAnswer)
	assert.Equal(t, []string{}, got.AcceptableAnswers)
}

func TestParseVerdict(t *testing.T) {
	v, err := ParseVerdict([]byte(`{"isCorrect":false,"confidence":3}`))
	require.NoError(t, err)
	assert.False(t, v.IsCorrect)
	assert.Equal(t, 1.0, v.Confidence)

	_, err = ParseVerdict([]byte(`{"confidence":0.5}`))
	assert.Error(t, err)
}

func TestJudgeHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Options{JudgeURL: srv.URL}).Judge(ctx, room.JudgeRequest{Answer: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
