// Package notify pushes clip outcomes to a WeCom (work-wechat) agent.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/event"
)

const defaultAPIBase = "https://qyapi.weixin.qq.com/cgi-bin"

// Config holds WeCom push credentials.
type Config struct {
	CorpID     string
	AgentID    string
	CorpSecret string
	UserID     string
	AtAll      bool
	// APIBase overrides the WeCom endpoint; tests point it at a local
	// server.
	APIBase string
}

// WeCom implements event.Sink. It sends a short text message for
// terminal events and ignores started events. Access tokens are cached
// until shortly before expiry.
type WeCom struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New constructs a WeCom sink.
func New(cfg Config, logger *zap.Logger) *WeCom {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeCom{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Consume pushes terminal events as text messages.
func (w *WeCom) Consume(ctx context.Context, evt event.Event) error {
	var content string
	switch evt.Type {
	case event.TypeSucceeded:
		content = fmt.Sprintf("Clipped: %s\n%s", evt.Title, evt.URL)
	case event.TypeFailed:
		content = fmt.Sprintf("Clip failed at %s: %s\n%s", evt.Stage, evt.Reason, evt.URL)
	default:
		return nil
	}
	return w.sendText(ctx, content)
}

// Close is a no-op.
func (w *WeCom) Close(context.Context) error { return nil }

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (w *WeCom) token(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.accessToken != "" && time.Now().Before(w.tokenExpiry) {
		return w.accessToken, nil
	}

	endpoint := fmt.Sprintf("%s/gettoken?corpid=%s&corpsecret=%s",
		strings.TrimRight(w.cfg.APIBase, "/"),
		url.QueryEscape(w.cfg.CorpID),
		url.QueryEscape(w.cfg.CorpSecret),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.ErrCode != 0 {
		return "", fmt.Errorf("token request rejected: %d %s", parsed.ErrCode, parsed.ErrMsg)
	}

	w.accessToken = parsed.AccessToken
	// Refresh a little early so an in-flight send never races expiry.
	w.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn-200) * time.Second)
	return w.accessToken, nil
}

type sendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (w *WeCom) sendText(ctx context.Context, content string) error {
	token, err := w.token(ctx)
	if err != nil {
		return err
	}

	toUser := w.cfg.UserID
	if w.cfg.AtAll {
		toUser = "@all"
	}
	payload := map[string]any{
		"touser":  toUser,
		"msgtype": "text",
		"agentid": w.cfg.AgentID,
		"text":    map[string]string{"content": content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/message/send?access_token=%s",
		strings.TrimRight(w.cfg.APIBase, "/"), url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if parsed.ErrCode != 0 {
		return fmt.Errorf("message rejected: %d %s", parsed.ErrCode, parsed.ErrMsg)
	}
	return nil
}
