// Package oracle is the HTTP client for the external risk-assessment model.
// Its verdicts are advisory: callers store them as annotations only.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bank-backoffice/config"
	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// maxReplyBytes bounds how much of the completion response is read.
const maxReplyBytes = 1 << 20

// ErrEmptyReply is returned when the completion carries no message.
var ErrEmptyReply = errors.New("oracle returned no completion")

// Client implements ports.AdvisoryOracle against a chat-completions endpoint.
type Client struct {
	http    *http.Client
	url     string
	apiKey  string
	model   string
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient creates an oracle client. Calls go through a circuit breaker
// that opens after cfg.Breaker.ConsecutiveFailures failures in a row.
func NewClient(cfg config.OracleConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	tripAfter := cfg.Breaker.ConsecutiveFailures
	if tripAfter == 0 {
		tripAfter = 3
	}

	c := &Client{
		http:   &http.Client{Timeout: timeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		log:    log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "advisory-oracle",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Assess asks the model for a decision on req.
func (c *Client) Assess(ctx context.Context, req ports.AssessmentRequest) (*domain.Assessment, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	assessment := ParseAssessment(result.(string))
	c.log.Debug().
		Str("kind", string(req.Kind)).
		Str("amount", req.Amount.String()).
		Str("decision", string(assessment.Decision)).
		Msg("advisory assessment received")
	return &assessment, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle responded with status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return decoded.Choices[0].Message.Content, nil
}
