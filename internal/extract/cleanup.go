package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Structural boilerplate removed when readability cannot find an article
// body. Tag and class denylists are fixed; this is an accepted
// approximation, not a guarantee.
var (
	denyTags = []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button", "meta", "link",
	}
	denyClasses = []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "toc",
		"table-of-contents", "footer", "header", "ad", "advertisement",
		"social", "share", "comments", "related", "breadcrumb",
	}
)

// denylistCleanup strips boilerplate nodes from the parsed document and
// renders the remaining body subtree.
func denylistCleanup(doc *goquery.Document) string {
	root := doc.Get(0)
	removeTags(root, denyTags)
	removeByClass(root, denyClasses)

	if body := findTag(root, "body"); body != nil {
		return renderNode(body)
	}
	return renderNode(root)
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func removeTags(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}
	removeMatching(n, func(node *html.Node) bool {
		return tagSet[node.Data]
	})
}

func removeByClass(n *html.Node, classes []string) {
	classSet := make(map[string]bool, len(classes))
	for _, class := range classes {
		classSet[class] = true
	}
	removeMatching(n, func(node *html.Node) bool {
		for _, a := range node.Attr {
			if a.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(strings.ToLower(a.Val)) {
				if classSet[c] {
					return true
				}
			}
		}
		return false
	})
}

func removeMatching(n *html.Node, match func(*html.Node) bool) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}
