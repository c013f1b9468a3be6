// Package extract derives note metadata and a cleaned content subtree
// from raw page HTML using an ordered strategy cascade.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/clip"
)

// Lazy-loaded images carry their URL in data-src; normalize before any
// parsing so both extraction and conversion see a plain src attribute.
var dataSrcRe = regexp.MustCompile(`data-src="([^"]*)"`)

// fieldSource is one step of a fallback cascade: the first source whose
// extractor returns a non-empty value wins.
type fieldSource struct {
	name    string
	extract func(doc *goquery.Document) string
}

// Extractor implements clip.Extractor. It is best-effort by contract:
// every field has a deterministic fallback and Extract never fails.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

var titleSources = []fieldSource{
	{"og:title", metaProperty("og:title")},
	{"twitter:title", metaName("twitter:title")},
	{"title-tag", func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find("title").First().Text())
	}},
	{"first-heading", func(doc *goquery.Document) string {
		return strings.TrimSpace(doc.Find("h1, h2").First().Text())
	}},
}

var authorSources = []fieldSource{
	{"meta-author", metaName("author")},
	{"article:author", metaProperty("article:author")},
	{"og:article:author", metaProperty("og:article:author")},
	{"twitter:creator", metaName("twitter:creator")},
}

var dateSources = []fieldSource{
	{"article:published_time", metaProperty("article:published_time")},
	{"meta-published_time", metaName("article:published_time")},
	{"meta-publishedDate", metaName("publishedDate")},
	{"meta-date", metaName("date")},
}

var descriptionSources = []fieldSource{
	{"meta-description", metaName("description")},
	{"og:description", metaProperty("og:description")},
	{"twitter:description", metaName("twitter:description")},
}

// Extract derives metadata and cleaned content from rawHTML. pageURL is
// used for the terminal title fallback and to resolve relative links
// during content extraction.
func (e *Extractor) Extract(pageURL string, rawHTML []byte) clip.ExtractedContent {
	normalized := dataSrcRe.ReplaceAll(rawHTML, []byte(`src="$1"`))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(normalized))
	if err != nil {
		// Unparseable input: fall back to the terminal defaults for
		// every field rather than failing the pipeline.
		e.logger.Warn("html parse failed, using fallbacks", zap.String("url", pageURL), zap.Error(err))
		return clip.ExtractedContent{
			Title:       titleFromURL(pageURL),
			ContentHTML: string(normalized),
		}
	}

	content := clip.ExtractedContent{
		Title:       e.firstNonEmpty(doc, titleSources),
		Author:      e.firstNonEmpty(doc, authorSources),
		PublishedAt: normalizeDate(e.firstNonEmpty(doc, dateSources)),
		Description: e.firstNonEmpty(doc, descriptionSources),
	}
	if content.Title == "" {
		content.Title = titleFromURL(pageURL)
	}

	content.ContentHTML = e.extractContent(pageURL, normalized, doc)
	return content
}

// firstNonEmpty runs a cascade and returns the first non-empty result.
// The winner is resolved once and never re-evaluated.
func (e *Extractor) firstNonEmpty(doc *goquery.Document, sources []fieldSource) string {
	for _, src := range sources {
		if v := strings.TrimSpace(src.extract(doc)); v != "" {
			e.logger.Debug("cascade resolved", zap.String("source", src.name))
			return v
		}
	}
	return ""
}

// extractContent runs readability first and falls back to a structural
// denylist cleanup. Both are best-effort heuristics, not guarantees of
// perfect extraction.
func (e *Extractor) extractContent(pageURL string, rawHTML []byte, doc *goquery.Document) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(rawHTML), parsed)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		return article.Content
	}
	if err != nil {
		e.logger.Debug("readability failed, using denylist cleanup", zap.Error(err))
	}
	return denylistCleanup(doc)
}

func metaProperty(prop string) func(doc *goquery.Document) string {
	sel := `meta[property="` + prop + `"]`
	return func(doc *goquery.Document) string {
		return doc.Find(sel).First().AttrOr("content", "")
	}
}

func metaName(name string) func(doc *goquery.Document) string {
	sel := `meta[name="` + name + `"]`
	return func(doc *goquery.Document) string {
		return doc.Find(sel).First().AttrOr("content", "")
	}
}

func titleFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return "Untitled"
	}
	title := parsed.Host
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		parts := strings.Split(path, "/")
		title += " " + parts[len(parts)-1]
	}
	return title
}
