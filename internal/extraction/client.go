package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/shepherd/internal/apperr"
)

// Client calls the vision-extraction service: image in, unstructured
// JSON out. Transient upstream failures are retried here with backoff;
// nothing downstream of this client retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if an extraction endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type extractRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// Extract submits image bytes and returns the raw JSON object the
// service produced. 5xx responses and network errors are retried with
// fibonacci backoff; anything that still fails surfaces as a transient
// error.
func (c *Client) Extract(ctx context.Context, image []byte, mimeType string) (map[string]any, error) {
	if !c.Configured() {
		return nil, apperr.Transient(nil, "extraction service not configured")
	}

	body, err := json.Marshal(extractRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	var raw map[string]any
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("call extraction service: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("extraction service returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("extraction service returned %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read extraction response: %w", err))
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode extraction response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Transient(err, "extraction failed")
	}
	return raw, nil
}
