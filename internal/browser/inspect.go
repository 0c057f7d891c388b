package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HasNode reports whether the rendered HTML contains at least one node
// matching selector. Used for page-state checks (logged-in marker, pending
// basket) where a DOM query over captured markup is cheaper and more
// reliable than another round-trip to the browser.
func HasNode(html, selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

// NodeText returns the trimmed text of the first node matching selector,
// or "" when absent.
func NodeText(html, selector string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// CountNodes returns how many nodes match selector.
func CountNodes(html, selector string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	return doc.Find(selector).Length()
}
