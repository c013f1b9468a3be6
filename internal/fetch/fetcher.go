// Package fetch retrieves raw page HTML with timeout and failure
// classification.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/clipvault/clipvault/internal/clip"
)

// Config controls Fetcher behavior.
type Config struct {
	Timeout         time.Duration
	UserAgent       string
	MaxContentBytes int64
	MaxRedirects    int
}

// Fetcher fetches a single page over HTTP. It applies one timeout and
// never retries; retry policy lives in the orchestrator.
type Fetcher struct {
	client *http.Client
	clock  clip.Clock
	cfg    Config
}

// New constructs a Fetcher.
func New(cfg Config, clock clip.Clock) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = 10 * 1024 * 1024
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= cfg.MaxRedirects {
					return fmt.Errorf("too many redirects (max %d)", cfg.MaxRedirects)
				}
				return nil
			},
		},
		clock: clock,
		cfg:   cfg,
	}
}

// Fetch retrieves the page at url and returns its raw HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) (clip.PageSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return clip.PageSource{}, &clip.FetchError{Kind: clip.FetchNetwork, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return clip.PageSource{}, &clip.FetchError{Kind: classify(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return clip.PageSource{}, &clip.FetchError{
			Kind:       clip.FetchHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxContentBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return clip.PageSource{}, &clip.FetchError{Kind: classify(err), URL: url, Err: err}
	}
	if int64(len(body)) > f.cfg.MaxContentBytes {
		return clip.PageSource{}, &clip.FetchError{
			Kind: clip.FetchNetwork,
			URL:  url,
			Err:  fmt.Errorf("content exceeds %d bytes", f.cfg.MaxContentBytes),
		}
	}

	return clip.PageSource{
		URL:       url,
		RawHTML:   body,
		FetchedAt: f.clock.Now(),
	}, nil
}

func classify(err error) clip.FetchErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return clip.FetchDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return clip.FetchTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return clip.FetchTimeout
	}
	return clip.FetchNetwork
}
