package note

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clipvault/clipvault/internal/clip"
)

// Render serializes a note as a YAML frontmatter block followed by the
// markdown body. Frontmatter key order is preserved.
func Render(n clip.Note) string {
	var b strings.Builder
	b.WriteString("---\n")
	for _, field := range n.Frontmatter {
		b.WriteString(marshalField(field.Key, field.Value))
	}
	b.WriteString("---\n\n")
	b.WriteString(n.Body)
	if !strings.HasSuffix(n.Body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// marshalField emits one "key: value" line with YAML-safe escaping.
// Each field goes through the yaml encoder individually so quoting of
// colons, hashes, quotes and newlines is handled by the library while
// key order stays under our control.
func marshalField(key, value string) string {
	out, err := yaml.Marshal(map[string]string{key: value})
	if err != nil {
		// Strings always marshal; guard anyway.
		return key + ": \"\"\n"
	}
	return string(out)
}
