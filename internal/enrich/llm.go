// Package enrich posts finished notes to an external LLM endpoint for
// post-processing. The call is fire-and-forget: nothing it returns feeds
// back into the pipeline's result.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/event"
)

// Config configures the enrichment call.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	Language   string
}

// Client implements event.Sink. It forwards succeeded clips to the LLM
// endpoint with bounded retries; failures are logged and swallowed at
// the hub.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type enrichRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Language string `json:"language"`
	DocID    string `json:"doc_id"`
	URL      string `json:"url"`
}

// Consume forwards succeeded events; other types are ignored.
func (c *Client) Consume(ctx context.Context, evt event.Event) error {
	if evt.Type != event.TypeSucceeded || c.cfg.URL == "" {
		return nil
	}
	body, err := json.Marshal(enrichRequest{
		Title:    evt.Title,
		Content:  evt.Markdown,
		Language: c.cfg.Language,
		DocID:    evt.DocID,
		URL:      evt.URL,
	})
	if err != nil {
		return fmt.Errorf("marshal enrich request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = c.post(ctx, body); lastErr == nil {
			c.logger.Debug("enrichment dispatched", zap.String("doc_id", evt.DocID))
			return nil
		}
		c.logger.Debug("enrichment attempt failed",
			zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return fmt.Errorf("enrich %s: %w", evt.DocID, lastErr)
}

// Close is a no-op.
func (c *Client) Close(context.Context) error { return nil }

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
