package clip

import (
	"context"
	"time"
)

// Fetcher retrieves the raw HTML for a URL. It applies a single timeout
// and classifies failures; retries belong to the orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (PageSource, error)
}

// Extractor derives title, author, date, description and a cleaned
// content subtree from raw HTML. It never fails hard.
type Extractor interface {
	Extract(url string, html []byte) ExtractedContent
}

// Converter transforms cleaned HTML into markdown and collects referenced
// image URLs. Conversion is deterministic.
type Converter interface {
	Convert(contentHTML string) (ConvertedNote, error)
}

// Relay rehosts referenced images with bounded concurrency. The returned
// mapping is total over refs; individual failures never abort the batch.
type Relay interface {
	Relay(ctx context.Context, refs []string) ImageMapping
}

// Assembler merges extraction metadata, markdown and the image mapping
// into a Note with a deterministic DocID.
type Assembler interface {
	Assemble(extracted ExtractedContent, converted ConvertedNote, mapping ImageMapping, sourceURL string) Note
}

// VaultWriter persists a Note using the dual-document layout the sync
// client expects: leaf first, then the updated parent.
type VaultWriter interface {
	Write(ctx context.Context, note Note) (StorageResult, error)
	Delete(ctx context.Context, path string) error
}

// Clock returns the current time (swappable for deterministic tests).
type Clock interface {
	Now() time.Time
}
