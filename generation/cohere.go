// Package generation wraps the Cohere chat API used to synthesize one
// product narrative from many review summaries and transcripts.
package generation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	coherecore "github.com/cohere-ai/cohere-go/v2/core"
)

const preamble = "You are an expert product analyst who synthesizes " +
	"multiple reviews and transcripts into comprehensive, actionable insights."

// Config configures the Cohere client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	// MaxAttempts caps retries for transient and rate-limit failures.
	MaxAttempts int
	// BaseBackoff seeds the exponential backoff between attempts.
	BaseBackoff time.Duration
}

// Client calls Cohere chat with retry. Rate-limit (429) and transient
// failures are retried with exponential backoff up to MaxAttempts; the
// caller skips the affected product group after that.
type Client struct {
	client *cohereclient.Client
	cfg    Config
	sleep  func(time.Duration)
}

// NewClient builds a Cohere client. The HTTP transport forces HTTP/1.1;
// the Cohere edge intermittently breaks streaming-less HTTP/2 requests.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cohere api key not configured")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	return &Client{
		client: cohereclient.NewClient(
			cohereclient.WithToken(cfg.APIKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		cfg:   cfg,
		sleep: time.Sleep,
	}, nil
}

// GenerateSummary produces a synthesized product analysis for the
// assembled prompt.
func (c *Client) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		text, err := c.chat(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		backoff := c.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
		if isRateLimited(err) {
			log.Printf("generation: rate limited, attempt %d/%d, backing off %s",
				attempt, c.cfg.MaxAttempts, backoff)
		} else {
			log.Printf("generation: attempt %d/%d failed: %v (retrying in %s)",
				attempt, c.cfg.MaxAttempts, err, backoff)
		}
		c.sleep(backoff)
	}

	return "", fmt.Errorf("generation failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	model := c.cfg.Model
	maxTokens := c.cfg.MaxTokens
	temperature := c.cfg.Temperature
	system := preamble

	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:     prompt,
		Model:       &model,
		Preamble:    &system,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat: %w", err)
	}
	if resp == nil {
		return "", errors.New("cohere chat returned empty response")
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("cohere chat returned no text")
	}
	return text, nil
}

func isRateLimited(err error) bool {
	var apiErr *coherecore.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
