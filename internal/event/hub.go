package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls Hub buffering.
type Config struct {
	BufferSize  int
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

const (
	defaultBufferSize  = 256
	defaultSinkTimeout = 10 * time.Second
)

// Hub fans events out to registered sinks from a single background
// goroutine. Emit never blocks the caller; when the buffer is full the
// event is dropped and counted.
type Hub struct {
	cfg     Config
	sinks   []Sink
	events  chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	logger  *zap.Logger
	dropped atomic.Int64
	closed  atomic.Bool

	closeOnce sync.Once
}

// NewHub starts the dispatch goroutine and returns a Hub ready to accept
// events.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an Event for dispatch. It never blocks.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("event dropped due to backpressure", zap.Int64("dropped_total", n))
	}
}

// Close drains buffered events, closes sinks, and waits for the dispatch
// goroutine to exit.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		case <-h.stopCh:
			h.drain()
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		default:
			return
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, evt); err != nil {
			h.logger.Warn("event sink consume failed",
				zap.String("type", string(evt.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
	defer cancel()
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("event sink close failed", zap.Error(err))
		}
	}
}

// LogSink records events through the service logger. It is always
// registered so progress is visible even with push delivery disabled.
type LogSink struct {
	Logger *zap.Logger
}

// Consume logs the event.
func (s *LogSink) Consume(_ context.Context, evt Event) error {
	logger := s.Logger
	if logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("clip_id", evt.ClipID),
		zap.String("url", evt.URL),
	}
	switch evt.Type {
	case TypeSucceeded:
		fields = append(fields, zap.String("doc_id", evt.DocID), zap.String("path", evt.Path))
		logger.Info("clip succeeded", fields...)
	case TypeFailed:
		fields = append(fields, zap.String("stage", evt.Stage), zap.String("reason", evt.Reason))
		logger.Warn("clip failed", fields...)
	default:
		logger.Info("clip started", fields...)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error { return nil }
