// Package event carries pipeline lifecycle notifications to detached
// collaborators (notifier, enrichment). Delivery is fire-and-forget:
// sink latency or failure cannot affect a pipeline's returned result.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Type denotes the lifecycle milestone an Event represents.
type Type string

// Supported event types.
const (
	TypeStarted   Type = "CLIP_STARTED"
	TypeSucceeded Type = "CLIP_SUCCEEDED"
	TypeFailed    Type = "CLIP_FAILED"
)

// Event is one pipeline notification. Terminal events carry either the
// stored document coordinates or the failing stage and reason.
type Event struct {
	Type   Type
	ClipID string
	URL    string
	TS     time.Time

	// Success fields.
	Title string
	DocID string
	Path  string
	// Markdown carries the finished body for enrichment consumers; text
	// notifiers ignore it.
	Markdown string

	// Failure fields.
	Stage  string
	Reason string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ClipID == "" {
		return errors.New("clip id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Type {
	case TypeStarted:
	case TypeSucceeded:
		if e.DocID == "" {
			return errors.New("succeeded event requires doc id")
		}
	case TypeFailed:
		if e.Stage == "" {
			return errors.New("failed event requires stage")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// Sink consumes events. Implementations must tolerate being called from
// a single background goroutine and honor the context deadline.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}
