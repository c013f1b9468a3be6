package note

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/clipvault/internal/clip"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestAssemble_FrontmatterOrderAndValues(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 17, 9, 30, 15, 0, time.UTC)}
	a := New(Config{BasePath: "Clippings"}, clock)

	extracted := clip.ExtractedContent{
		Title:       "A Fine Article",
		Author:      "Jane Doe",
		PublishedAt: "2024-05-16",
		Description: "About things",
	}
	converted := clip.ConvertedNote{MarkdownBody: "Body text."}

	n := a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com/a")

	keys := make([]string, 0, len(n.Frontmatter))
	for _, f := range n.Frontmatter {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"url", "title", "description", "author", "published", "created"}, keys)
	require.Equal(t, "https://example.com/a", n.Frontmatter[0].Value)
	require.Equal(t, "A Fine Article", n.Frontmatter[1].Value)
	require.Equal(t, "2024-05-17 09:30:15", n.Frontmatter[5].Value)
	require.Equal(t, "20240517093015_a-fine-article", n.DocID)
}

func TestAssemble_RewritesUploadedImages(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)}
	a := New(Config{}, clock)

	converted := clip.ConvertedNote{
		MarkdownBody: "![a](https://orig/a.png) and ![b](https://orig/b.png) again ![a](https://orig/a.png)",
		ImageRefs:    []string{"https://orig/a.png", "https://orig/b.png"},
	}
	mapping := clip.ImageMapping{
		"https://orig/a.png": {NewURL: "https://img.host/a.png", Status: clip.RelayUploaded},
		"https://orig/b.png": {NewURL: "https://orig/b.png", Status: clip.RelayFailed},
	}

	n := a.Assemble(clip.ExtractedContent{Title: "t"}, converted, mapping, "https://example.com")

	require.Equal(t,
		"![a](https://img.host/a.png) and ![b](https://orig/b.png) again ![a](https://img.host/a.png)",
		n.Body)
}

func TestAssemble_QueryStringVariantRefsRewriteExactly(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)}
	a := New(Config{}, clock)

	// One ref is a strict prefix of the other, as a CDN serving sized
	// variants of the same image produces.
	converted := clip.ConvertedNote{
		MarkdownBody: "![a](https://orig/a.png) then ![b](https://orig/a.png?w=200)",
		ImageRefs:    []string{"https://orig/a.png", "https://orig/a.png?w=200"},
	}
	mapping := clip.ImageMapping{
		"https://orig/a.png":       {NewURL: "https://img.host/1.png", Status: clip.RelayUploaded},
		"https://orig/a.png?w=200": {NewURL: "https://img.host/2.png", Status: clip.RelayUploaded},
	}

	n := a.Assemble(clip.ExtractedContent{Title: "t"}, converted, mapping, "https://example.com")

	require.Equal(t,
		"![a](https://img.host/1.png) then ![b](https://img.host/2.png)",
		n.Body)
}

func TestAssemble_PrefixRefWithFailedVariant(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)}
	a := New(Config{}, clock)

	// The longer variant failed to upload; the shorter ref must not
	// rewrite inside it.
	converted := clip.ConvertedNote{
		MarkdownBody: "![a](https://orig/a.png) then ![b](https://orig/a.png?w=200)",
		ImageRefs:    []string{"https://orig/a.png", "https://orig/a.png?w=200"},
	}
	mapping := clip.ImageMapping{
		"https://orig/a.png":       {NewURL: "https://img.host/1.png", Status: clip.RelayUploaded},
		"https://orig/a.png?w=200": {NewURL: "https://orig/a.png?w=200", Status: clip.RelayFailed},
	}

	n := a.Assemble(clip.ExtractedContent{Title: "t"}, converted, mapping, "https://example.com")

	require.Equal(t,
		"![a](https://img.host/1.png) then ![b](https://orig/a.png?w=200)",
		n.Body)
}

func TestAssemble_DeterministicUnderFixedClock(t *testing.T) {
	t.Parallel()

	extracted := clip.ExtractedContent{Title: "Same Input"}
	converted := clip.ConvertedNote{MarkdownBody: "Body."}

	build := func() clip.Note {
		clock := &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
		a := New(Config{BasePath: "Clippings", DateFolders: true}, clock)
		return a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com")
	}

	first := build()
	second := build()
	require.Equal(t, first, second)
}

func TestAssemble_SameSecondCollisionGetsCounter(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	a := New(Config{}, clock)
	extracted := clip.ExtractedContent{Title: "Same Title"}
	converted := clip.ConvertedNote{MarkdownBody: "Body."}

	first := a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com")
	second := a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com")
	third := a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com")

	require.Equal(t, "20240102030405_same-title", first.DocID)
	require.Equal(t, "20240102030405_same-title_1", second.DocID)
	require.Equal(t, "20240102030405_same-title_2", third.DocID)

	// Counter resets once the second rolls over.
	clock.now = clock.now.Add(time.Second)
	fourth := a.Assemble(extracted, converted, clip.ImageMapping{}, "https://example.com")
	require.Equal(t, "20240102030406_same-title", fourth.DocID)
}

func TestNotePath_DateFolders(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 11, 3, 14, 45, 0, 0, time.UTC)}

	withDates := New(Config{BasePath: "Clippings", DateFolders: true}, clock)
	n := withDates.Assemble(clip.ExtractedContent{Title: "My Note"}, clip.ConvertedNote{}, nil, "https://example.com")
	require.Equal(t, "Clippings/2024/11/20241103_1445_my-note.md", n.Path)

	flat := New(Config{BasePath: "Clippings"}, clock)
	n = flat.Assemble(clip.ExtractedContent{Title: "My Note"}, clip.ConvertedNote{}, nil, "https://example.com")
	require.Equal(t, "Clippings/20241103_1445_my-note.md", n.Path)
}
