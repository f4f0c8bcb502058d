package pagecontext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction limits keep the decision prompt compact
const (
	maxLinks      = 15
	maxHeadings   = 8
	maxTextLength = 60
)

// PageOutline holds the visible structure extracted from page HTML for
// the decision prompt.
type PageOutline struct {
	Links    []string
	Headings []string
}

// Extract parses page HTML and pulls out visible link and heading text.
// Parse failures return an empty outline; the decision prompt simply
// carries less context.
func Extract(html string) *PageOutline {
	outline := &PageOutline{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return outline
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := clip(sel.Text())
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		outline.Links = append(outline.Links, text)
		return len(outline.Links) < maxLinks
	})

	doc.Find("h1, h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := clip(sel.Text())
		if text == "" {
			return true
		}
		outline.Headings = append(outline.Headings, text)
		return len(outline.Headings) < maxHeadings
	})

	return outline
}

// clip collapses whitespace and truncates to the prompt length limit.
// Truncation counts runes so multi-byte text is never split mid-character.
func clip(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}
	return text
}
