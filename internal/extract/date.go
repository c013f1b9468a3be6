package extract

import (
	"time"

	"github.com/araddon/dateparse"
)

// normalizeDate parses the many date shapes pages publish (RFC 3339,
// slash dates, bare YYYY-MM-DD) and renders them uniformly. Unparseable
// input passes through untouched so the frontmatter still carries
// whatever the page declared.
func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
