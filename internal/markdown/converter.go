// Package markdown converts cleaned HTML into markdown and collects the
// image URLs the content references.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/clipvault/clipvault/internal/clip"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// Converter implements clip.Converter. Conversion is deterministic: the
// same HTML always yields the same markdown and the same ref ordering.
type Converter struct {
	converter *md.Converter
}

// New constructs a Converter with GitHub-flavored rules.
func New() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert transforms content HTML into a ConvertedNote.
func (c *Converter) Convert(contentHTML string) (clip.ConvertedNote, error) {
	refs, err := collectImageRefs(contentHTML)
	if err != nil {
		return clip.ConvertedNote{}, fmt.Errorf("collect image refs: %w", err)
	}

	body, err := c.converter.ConvertString(contentHTML)
	if err != nil {
		return clip.ConvertedNote{}, fmt.Errorf("convert html: %w", err)
	}
	body = cleanMarkdown(body)

	// Refs whose elements were dropped by conversion (empty alt inside a
	// stripped container, for example) must not survive in the list: the
	// invariant is that every listed ref occurs in the body.
	present := make([]string, 0, len(refs))
	positions := make(map[string][]int, len(refs))
	for _, ref := range refs {
		offs := occurrences(body, ref)
		if len(offs) == 0 {
			continue
		}
		present = append(present, ref)
		positions[ref] = offs
	}

	return clip.ConvertedNote{
		MarkdownBody: body,
		ImageRefs:    present,
		RefPositions: positions,
	}, nil
}

func cleanMarkdown(body string) string {
	body = excessiveLinesRe.ReplaceAllString(body, "\n\n")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func occurrences(body, ref string) []int {
	var offs []int
	for start := 0; ; {
		idx := strings.Index(body[start:], ref)
		if idx < 0 {
			return offs
		}
		offs = append(offs, start+idx)
		start += idx + len(ref)
	}
}
