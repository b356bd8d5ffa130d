// Package content talks to the trivia content generator and the free-text
// answer arbiter over HTTP.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorSnippet  = 256
)

var (
	ErrNotConfigured = errors.New("content service not configured")
	ErrEmptyBatch    = errors.New("content service returned no usable questions")
)

// StatusError is a non-2xx answer from a collaborator.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, e.Body)
}

type Options struct {
	QuestionsURL string
	JudgeURL     string
	APIKey       string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	questionsURL string
	judgeURL     string
	apiKey       string
	http         *http.Client
	tracer       trace.Tracer
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		questionsURL: strings.TrimSpace(opts.QuestionsURL),
		judgeURL:     strings.TrimSpace(opts.JudgeURL),
		apiKey:       opts.APIKey,
		http:         hc,
		tracer:       otel.Tracer("partyline/content"),
	}
}

func (c *Client) postJSON(ctx context.Context, span trace.Span, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: snippet}
	}
	return data, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
