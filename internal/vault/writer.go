// Package vault persists notes into the document store using the
// dual-document layout a folder-sync client expects: one leaf per
// revision, referenced by an append-only parent keyed by path.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/clip"
	"github.com/clipvault/clipvault/internal/couch"
	"github.com/clipvault/clipvault/internal/metrics"
	"github.com/clipvault/clipvault/internal/note"
)

// Config controls write retry behavior.
type Config struct {
	// MaxRetries bounds the read-modify-write cycles attempted when the
	// parent document changed underneath us. The conflict window is
	// narrow, so retries are immediate.
	MaxRetries int
}

// Writer implements clip.VaultWriter.
type Writer struct {
	store  couch.Store
	clock  clip.Clock
	cfg    Config
	logger *zap.Logger
	seq    atomic.Int64
}

// New constructs a Writer.
func New(store couch.Store, clock clip.Clock, cfg Config, logger *zap.Logger) *Writer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, clock: clock, cfg: cfg, logger: logger}
}

// Write persists the note. Protocol: read the current parent (a miss
// means new file), write the new leaf FIRST, then write the parent with
// the leaf appended. Writing the parent before the leaf exists would
// expose a dangling reference to sync clients; a leaf without a parent
// update is merely invisible and is cleaned up by the next revision.
func (w *Writer) Write(ctx context.Context, n clip.Note) (clip.StorageResult, error) {
	content := note.Render(n)
	parentID := strings.ToLower(n.Path)

	var result clip.StorageResult
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		parent, found, err := w.store.GetParent(ctx, parentID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read parent: %w", err))
		}

		// Once the write phase starts it is allowed to complete even if
		// the request deadline expires; cancelling between the two PUTs
		// would strand partial document states.
		writeCtx := context.WithoutCancel(ctx)

		now := w.clock.Now()
		leaf := w.buildLeaf(content, now)
		if _, err := w.store.PutLeaf(writeCtx, leaf); err != nil {
			return backoff.Permanent(fmt.Errorf("write leaf: %w", err))
		}

		updated := appendRevision(parent, found, n.Path, parentID, leaf.ID, len(content), now)
		rev, err := w.store.PutParent(writeCtx, updated)
		if err != nil {
			if errors.Is(err, couch.ErrConflict) {
				metrics.ObserveStorageRetry()
				w.logger.Debug("parent write conflict, retrying",
					zap.String("path", n.Path))
				return err // retryable
			}
			return backoff.Permanent(fmt.Errorf("write parent: %w", err))
		}

		result = clip.StorageResult{
			DocID:    n.DocID,
			Path:     n.Path,
			LeafID:   leaf.ID,
			Revision: rev,
		}
		return nil
	}

	err := backoff.Retry(operation, w.retryPolicy())
	if err != nil {
		return clip.StorageResult{}, w.classify(n.Path, err)
	}
	w.logger.Info("note stored",
		zap.String("doc_id", result.DocID),
		zap.String("path", result.Path),
		zap.String("leaf_id", result.LeafID),
	)
	return result, nil
}

// Delete appends a tombstone revision: the parent stays in place with
// deleted set and an updated mtime, so sync peers replicate the removal.
func (w *Writer) Delete(ctx context.Context, path string) error {
	parentID := strings.ToLower(path)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		parent, found, err := w.store.GetParent(ctx, parentID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read parent: %w", err))
		}
		if !found {
			return backoff.Permanent(&clip.StorageError{
				Kind: clip.StorageNotFound,
				Path: path,
				Err:  fmt.Errorf("no parent document for %s", parentID),
			})
		}
		parent.Deleted = true
		parent.MTime = w.clock.Now().UnixMilli()
		if _, err := w.store.PutParent(context.WithoutCancel(ctx), parent); err != nil {
			if errors.Is(err, couch.ErrConflict) {
				metrics.ObserveStorageRetry()
				return err
			}
			return backoff.Permanent(fmt.Errorf("write parent: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, w.retryPolicy()); err != nil {
		return w.classify(path, err)
	}
	return nil
}

func (w *Writer) buildLeaf(content string, now time.Time) couch.LeafDoc {
	seq := w.seq.Add(1)
	sum := sha256.Sum256([]byte(content))
	return couch.LeafDoc{
		ID:   fmt.Sprintf("h:%d-%d", now.UnixMilli(), seq),
		Type: couch.TypeLeaf,
		Data: content,
		Hash: hex.EncodeToString(sum[:]),
		Seq:  seq,
	}
}

// appendRevision produces the next parent state: children grow by one
// leaf reference, mtime and size move forward, a prior tombstone is
// cleared. Children are never rewritten or truncated.
func appendRevision(parent couch.ParentDoc, found bool, path, parentID, leafID string, size int, now time.Time) couch.ParentDoc {
	ms := now.UnixMilli()
	if !found {
		return couch.ParentDoc{
			ID:       parentID,
			Path:     path,
			Children: []string{leafID},
			CTime:    ms,
			MTime:    ms,
			Size:     size,
			Type:     couch.TypePlain,
			Deleted:  false,
		}
	}
	parent.Children = append(parent.Children, leafID)
	parent.MTime = ms
	parent.Size = size
	parent.Deleted = false
	if parent.Type == "" {
		parent.Type = couch.TypePlain
	}
	return parent
}

func (w *Writer) retryPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(w.cfg.MaxRetries))
}

func (w *Writer) classify(path string, err error) error {
	var se *clip.StorageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, couch.ErrConflict) {
		return &clip.StorageError{Kind: clip.StorageConflict, Path: path, Err: err}
	}
	return &clip.StorageError{Kind: clip.StorageUnavailable, Path: path, Err: err}
}
