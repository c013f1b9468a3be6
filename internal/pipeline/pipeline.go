// Package pipeline orchestrates a clip request through its stages:
// fetch, extract, convert, relay, assemble, store. Fetch and store
// failures are fatal; the middle stages degrade instead of failing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/clip"
	"github.com/clipvault/clipvault/internal/event"
	"github.com/clipvault/clipvault/internal/metrics"
)

// Stage names reported on failure events and metrics.
const (
	StageFetching   = "Fetching"
	StageExtracting = "Extracting"
	StageConverting = "Converting"
	StageRelaying   = "Relaying"
	StageAssembling = "Assembling"
	StageStoring    = "Storing"
)

// Config controls per-request behavior.
type Config struct {
	// Deadline bounds one clip request end to end. Zero disables the
	// pipeline deadline; the caller's context still applies.
	Deadline time.Duration
}

// Error reports which stage a clip failed in. Unwrap exposes the stage
// error for errors.As checks against the clip error types.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("clip failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Emitter decouples the pipeline from the event hub. Emit must never
// block.
type Emitter interface {
	Emit(evt event.Event)
}

// Pipeline executes clip requests. All collaborators are injected so
// tests can substitute fakes per stage.
type Pipeline struct {
	fetcher   clip.Fetcher
	extractor clip.Extractor
	converter clip.Converter
	relay     clip.Relay
	assembler clip.Assembler
	writer    clip.VaultWriter
	clock     clip.Clock
	emitter   Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	fetcher clip.Fetcher,
	extractor clip.Extractor,
	converter clip.Converter,
	relay clip.Relay,
	assembler clip.Assembler,
	writer clip.VaultWriter,
	clock clip.Clock,
	emitter Emitter,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		converter: converter,
		relay:     relay,
		assembler: assembler,
		writer:    writer,
		clock:     clock,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Clip runs one URL through the full pipeline and returns the stored
// document coordinates. On failure the returned error is a *Error naming
// the stage.
func (p *Pipeline) Clip(ctx context.Context, url string) (clip.ClipResult, error) {
	clipID := uuid.NewString()
	logger := p.logger.With(zap.String("clip_id", clipID), zap.String("url", url))

	if p.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Deadline)
		defer cancel()
	}

	metrics.IncActivePipelines()
	defer metrics.DecActivePipelines()

	p.emit(event.Event{
		Type:   event.TypeStarted,
		ClipID: clipID,
		URL:    url,
		TS:     p.clock.Now(),
	})

	result, err := p.run(ctx, logger, url)
	if err != nil {
		logger.Warn("clip failed", zap.String("stage", err.Stage), zap.Error(err.Err))
		metrics.ObserveClip("failed")
		p.emit(event.Event{
			Type:   event.TypeFailed,
			ClipID: clipID,
			URL:    url,
			TS:     p.clock.Now(),
			Stage:  err.Stage,
			Reason: err.Err.Error(),
		})
		return clip.ClipResult{}, err
	}

	logger.Info("clip stored",
		zap.String("doc_id", result.stored.DocID),
		zap.String("path", result.stored.Path),
	)
	metrics.ObserveClip("succeeded")
	p.emit(event.Event{
		Type:     event.TypeSucceeded,
		ClipID:   clipID,
		URL:      url,
		TS:       p.clock.Now(),
		Title:    result.title,
		DocID:    result.stored.DocID,
		Path:     result.stored.Path,
		Markdown: result.markdown,
	})
	return clip.ClipResult{
		DocID: result.stored.DocID,
		Title: result.title,
		Path:  result.stored.Path,
	}, nil
}

type runResult struct {
	title    string
	markdown string
	stored   clip.StorageResult
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, url string) (runResult, *Error) {
	start := p.clock.Now()
	page, err := p.fetcher.Fetch(ctx, url)
	metrics.ObserveStage(StageFetching, p.clock.Now().Sub(start))
	if err != nil {
		return runResult{}, &Error{Stage: StageFetching, Err: err}
	}

	start = p.clock.Now()
	extracted := p.extractor.Extract(page.URL, page.RawHTML)
	metrics.ObserveStage(StageExtracting, p.clock.Now().Sub(start))

	start = p.clock.Now()
	converted, err := p.converter.Convert(extracted.ContentHTML)
	metrics.ObserveStage(StageConverting, p.clock.Now().Sub(start))
	if err != nil {
		// Conversion is best-effort: keep the cleaned HTML as the body
		// rather than losing the clip.
		logger.Warn("markdown conversion degraded", zap.Error(err))
		converted = clip.ConvertedNote{MarkdownBody: extracted.ContentHTML}
	}

	start = p.clock.Now()
	mapping := p.relay.Relay(ctx, converted.ImageRefs)
	metrics.ObserveStage(StageRelaying, p.clock.Now().Sub(start))
	metrics.ObserveRelay(string(clip.RelayUploaded), mapping.Uploaded())
	metrics.ObserveRelay(string(clip.RelayFailed), mapping.Failed())
	if n := mapping.Failed(); n > 0 {
		logger.Warn("image relay partially failed",
			zap.Int("failed", n), zap.Int("total", len(converted.ImageRefs)))
	}

	start = p.clock.Now()
	note := p.assembler.Assemble(extracted, converted, mapping, url)
	metrics.ObserveStage(StageAssembling, p.clock.Now().Sub(start))

	start = p.clock.Now()
	stored, err := p.writer.Write(ctx, note)
	metrics.ObserveStage(StageStoring, p.clock.Now().Sub(start))
	if err != nil {
		return runResult{}, &Error{Stage: StageStoring, Err: err}
	}

	return runResult{
		title:    extracted.Title,
		markdown: note.Body,
		stored:   stored,
	}, nil
}

func (p *Pipeline) emit(evt event.Event) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(evt)
}
