// Package inference wraps the Gemini API behind the single-method contract
// the pipeline consumes.
package inference

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client is an InferenceService backed by Gemini. Authentication follows
// the genai library defaults (GEMINI_API_KEY or application default
// credentials).
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// New creates a Gemini-backed client. An empty model selects DefaultModel;
// a zero timeout disables the per-call deadline.
func New(ctx context.Context, model string, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("inference: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model, timeout: timeout}, nil
}

// Complete sends one prompt and returns the raw model text. Timeouts and
// connection failures come back as wrapped errors naming the model, so a
// misconfigured or unreachable service is diagnosable from the log line.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("inference: generate content with %s: %w", c.model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("inference: empty response from %s", c.model)
	}
	return text, nil
}
