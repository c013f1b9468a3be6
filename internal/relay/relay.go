// Package relay rehosts referenced images on a configured image host and
// maps original URLs to their new locations.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clipvault/clipvault/internal/clip"
)

// Config controls Uploader behavior.
type Config struct {
	// Server is the image host base URL; UploadPath is joined onto it.
	Server     string
	UploadPath string
	// Secret authenticates uploads via the X-API-Key header.
	Secret string
	// Concurrency bounds the worker budget for the fan-out.
	Concurrency     int
	PerImageTimeout time.Duration
}

// Uploader implements clip.Relay against a PicGo-style upload endpoint.
// Each image is attempted exactly once; a failure keeps the original URL
// in the mapping and never aborts the batch.
type Uploader struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs an Uploader.
func New(cfg Config, logger *zap.Logger) *Uploader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PerImageTimeout <= 0 {
		cfg.PerImageTimeout = 30 * time.Second
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = "/upload"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client: &http.Client{Timeout: cfg.PerImageTimeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Relay fetches and rehosts each ref with bounded concurrency. The
// returned mapping has exactly one entry per ref; fan-in completes after
// all attempts finish regardless of individual outcomes.
func (u *Uploader) Relay(ctx context.Context, refs []string) clip.ImageMapping {
	mapping := make(clip.ImageMapping, len(refs))
	if len(refs) == 0 {
		return mapping
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			result := u.relayOne(ctx, ref)
			mu.Lock()
			mapping[ref] = result
			mu.Unlock()
			// Failures are represented in the mapping, never returned:
			// one bad image must not cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	// Entries abandoned by deadline expiry still need a total mapping.
	for _, ref := range refs {
		if _, ok := mapping[ref]; !ok {
			mapping[ref] = clip.RelayResult{NewURL: ref, Status: clip.RelayFailed}
		}
	}

	u.logger.Info("image relay complete",
		zap.Int("total", len(refs)),
		zap.Int("uploaded", mapping.Uploaded()),
		zap.Int("failed", mapping.Failed()),
	)
	return mapping
}

func (u *Uploader) relayOne(ctx context.Context, ref string) clip.RelayResult {
	failed := clip.RelayResult{NewURL: ref, Status: clip.RelayFailed}
	if ctx.Err() != nil {
		return failed
	}

	data, err := u.download(ctx, ref)
	if err != nil {
		u.logger.Debug("image download failed", zap.String("url", ref), zap.Error(err))
		return failed
	}

	newURL, err := u.upload(ctx, filenameFor(ref), data)
	if err != nil {
		u.logger.Debug("image upload failed", zap.String("url", ref), zap.Error(err))
		return failed
	}
	return clip.RelayResult{NewURL: newURL, Status: clip.RelayUploaded}
}

func (u *Uploader) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %s", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

type uploadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"msg"`
	Result  []string `json:"result"`
}

func (u *Uploader) upload(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form data: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	endpoint := strings.TrimRight(u.cfg.Server, "/") + "/" + strings.TrimLeft(u.cfg.UploadPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if u.cfg.Secret != "" {
		req.Header.Set("X-API-Key", u.cfg.Secret)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload status %d", resp.StatusCode)
	}
	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !parsed.Success || len(parsed.Result) == 0 {
		return "", fmt.Errorf("upload rejected: %s", parsed.Message)
	}
	return parsed.Result[0], nil
}

func filenameFor(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "image.jpg"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "image.jpg"
	}
	return name
}

// Noop is the identity relay used when rehosting is disabled by
// configuration: every ref maps to itself with status skipped.
type Noop struct{}

// Relay returns a skipped identity mapping.
func (Noop) Relay(_ context.Context, refs []string) clip.ImageMapping {
	mapping := make(clip.ImageMapping, len(refs))
	for _, ref := range refs {
		mapping[ref] = clip.RelayResult{NewURL: ref, Status: clip.RelaySkipped}
	}
	return mapping
}
