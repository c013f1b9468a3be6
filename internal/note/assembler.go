// Package note assembles extraction metadata, markdown and the image
// mapping into a single frontmatter-prefixed document.
package note

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clipvault/clipvault/internal/clip"
)

// Config controls note placement.
type Config struct {
	// BasePath is the vault folder notes are clipped into.
	BasePath string
	// DateFolders nests notes under YYYY/MM below BasePath.
	DateFolders bool
}

// Assembler implements clip.Assembler. Given a fixed clock it is
// deterministic: identical inputs yield identical notes except for the
// counter suffix disambiguating same-second collisions.
type Assembler struct {
	clock clip.Clock
	cfg   Config

	mu        sync.Mutex
	lastStamp string
	counter   int
}

// New constructs an Assembler.
func New(cfg Config, clock clip.Clock) *Assembler {
	cfg.BasePath = strings.Trim(cfg.BasePath, "/")
	if cfg.BasePath == "" {
		cfg.BasePath = "Clippings"
	}
	return &Assembler{clock: clock, cfg: cfg}
}

// Assemble builds the Note: body image URLs rewritten through the
// mapping, ordered frontmatter, and a content-derived DocID.
func (a *Assembler) Assemble(
	extracted clip.ExtractedContent,
	converted clip.ConvertedNote,
	mapping clip.ImageMapping,
	sourceURL string,
) clip.Note {
	body := rewriteImages(converted, mapping)
	created := a.clock.Now()

	docID := a.nextDocID(created, extracted.Title)

	frontmatter := []clip.FrontmatterField{
		{Key: "url", Value: sourceURL},
		{Key: "title", Value: extracted.Title},
		{Key: "description", Value: extracted.Description},
		{Key: "author", Value: extracted.Author},
		{Key: "published", Value: extracted.PublishedAt},
		{Key: "created", Value: created.Format("2006-01-02 15:04:05")},
	}

	return clip.Note{
		DocID:       docID,
		Path:        a.notePath(created, extracted.Title),
		Frontmatter: frontmatter,
		Body:        body,
	}
}

// rewriteImages replaces every occurrence of each original ref with its
// mapped URL. Failed refs resolve to themselves, so the body always
// carries a resolvable URL. Replacement is a single left-to-right scan
// taking the longest ref matching at each position; a ref that is a
// strict prefix of another (query-string variants of one CDN URL) never
// rewrites inside the longer ref's occurrences. Failed refs stay in the
// match set so their spans are skipped whole, not partially rewritten.
func rewriteImages(converted clip.ConvertedNote, mapping clip.ImageMapping) string {
	body := converted.MarkdownBody
	if len(converted.ImageRefs) == 0 {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); {
		ref := longestRefAt(body[i:], converted.ImageRefs)
		if ref == "" {
			b.WriteByte(body[i])
			i++
			continue
		}
		b.WriteString(mapping.Resolve(ref))
		i += len(ref)
	}
	return b.String()
}

// longestRefAt returns the longest ref occurring at the start of s, or
// "" when none matches there.
func longestRefAt(s string, refs []string) string {
	best := ""
	for _, ref := range refs {
		if len(ref) > len(best) && strings.HasPrefix(s, ref) {
			best = ref
		}
	}
	return best
}

// nextDocID derives {YYYYMMDDHHMMSS}_{slug}. Collisions within the same
// second get a monotonic counter suffix; the counter resets when the
// second rolls over.
func (a *Assembler) nextDocID(created time.Time, title string) string {
	stamp := created.Format("20060102150405")
	id := stamp + "_" + Slugify(title)

	a.mu.Lock()
	defer a.mu.Unlock()
	if id == a.lastStamp {
		a.counter++
		return fmt.Sprintf("%s_%d", id, a.counter)
	}
	a.lastStamp = id
	a.counter = 0
	return id
}

func (a *Assembler) notePath(created time.Time, title string) string {
	parts := []string{a.cfg.BasePath}
	if a.cfg.DateFolders {
		parts = append(parts, created.Format("2006"), created.Format("01"))
	}
	filename := fmt.Sprintf("%s_%s_%s.md",
		created.Format("20060102"), created.Format("1504"), Slugify(title))
	parts = append(parts, filename)
	return strings.Join(parts, "/")
}
