// Package clip defines core types shared across the ingestion pipeline.
package clip

import "time"

// PageSource holds the raw HTML fetched for a URL. It is request-scoped
// and discarded once the extractor has consumed it.
type PageSource struct {
	URL       string
	RawHTML   []byte
	FetchedAt time.Time
}

// ExtractedContent is the metadata and cleaned content subtree derived
// from a page. Every field has a deterministic fallback; extraction never
// fails hard.
type ExtractedContent struct {
	Title       string
	Author      string
	PublishedAt string
	Description string
	ContentHTML string
}

// ConvertedNote is the markdown rendering of the cleaned content plus the
// ordered, de-duplicated set of image URLs it references.
type ConvertedNote struct {
	MarkdownBody string
	// ImageRefs lists distinct image URLs in document order of first
	// occurrence. Every entry appears at least once in MarkdownBody.
	ImageRefs []string
	// RefPositions maps each ref to the byte offsets of its occurrences
	// in MarkdownBody.
	RefPositions map[string][]int
}

// RelayStatus describes the outcome of rehosting a single image.
type RelayStatus string

// Relay outcomes recorded per image in an ImageMapping.
const (
	RelayUploaded RelayStatus = "uploaded"
	RelaySkipped  RelayStatus = "skipped"
	RelayFailed   RelayStatus = "failed"
)

// RelayResult is the mapping entry for one original image URL.
// On failure NewURL carries the original URL so the note body always
// references a resolvable location.
type RelayResult struct {
	NewURL string
	Status RelayStatus
}

// ImageMapping maps original image URLs to their relay results. It is
// built once by the relay stage and never mutated afterwards; the mapping
// is total over the input refs regardless of individual failures.
type ImageMapping map[string]RelayResult

// Uploaded counts entries with status uploaded.
func (m ImageMapping) Uploaded() int { return m.count(RelayUploaded) }

// Failed counts entries with status failed.
func (m ImageMapping) Failed() int { return m.count(RelayFailed) }

func (m ImageMapping) count(status RelayStatus) int {
	n := 0
	for _, r := range m {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Resolve returns the URL the note body should reference for an original
// image URL. Unknown refs resolve to themselves.
func (m ImageMapping) Resolve(original string) string {
	if r, ok := m[original]; ok && r.NewURL != "" {
		return r.NewURL
	}
	return original
}

// FrontmatterField is one ordered key/value pair of a note's metadata
// block. Order is significant and preserved through serialization.
type FrontmatterField struct {
	Key   string
	Value string
}

// Note is the assembled logical document: metadata block plus markdown
// body, identified by a content-derived DocID. DocID is computed once at
// assembly time and never regenerated.
type Note struct {
	DocID       string
	Path        string
	Frontmatter []FrontmatterField
	Body        string
}

// StorageResult reports a successful vault write.
type StorageResult struct {
	DocID    string
	Path     string
	LeafID   string
	Revision string
}

// ClipResult is the terminal outcome returned to the inbound caller.
type ClipResult struct {
	DocID string `json:"doc_id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}
