package markdown

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// collectImageRefs returns the distinct image URLs referenced by the
// content in document order of first occurrence. Both src and data-src
// are honored; src wins when present.
func collectImageRefs(contentHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		return nil, err
	}

	var refs []string
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := sel.AttrOr("src", "")
		if src == "" {
			src = sel.AttrOr("data-src", "")
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || seen[src] {
			return
		}
		seen[src] = true
		refs = append(refs, src)
	})
	return refs, nil
}
