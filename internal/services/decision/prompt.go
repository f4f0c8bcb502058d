package decision

import (
	"fmt"
	"strings"

	"github.com/ternarybob/sitetest/internal/models"
)

const decisionSystemPrompt = `You are an automated website tester. You are shown a screenshot of the
current page plus some page context, and you decide the single next action
to take. Respond with exactly one JSON object in a fenced code block:

` + "```json\n" + `{"action": "click|type|scroll|navigate|wait|complete", "target": "<css selector or url>", "value": "<text to type>", "reasoning": "<one sentence>"}
` + "```\n" + `
Rules:
- "target" is a CSS selector for click/type, a URL for navigate, unused otherwise.
- "value" is only used with "type".
- Prefer exploring visible navigation and interactive elements.
- Return "complete" once the page has been reasonably exercised or nothing
  useful remains to try.`

// buildDecisionPrompt renders the textual page context sent with the screenshot
func buildDecisionPrompt(pageCtx *models.PageContext) string {
	var b strings.Builder
	b.WriteString("Current page state:\n")
	fmt.Fprintf(&b, "- URL: %s\n", pageCtx.URL)
	fmt.Fprintf(&b, "- Title: %s\n", pageCtx.Title)
	fmt.Fprintf(&b, "- Viewport: %dx%d\n", pageCtx.ViewportWidth, pageCtx.ViewportHeight)

	if len(pageCtx.RecentActions) > 0 {
		fmt.Fprintf(&b, "- Recent actions: %s\n", strings.Join(pageCtx.RecentActions, ", "))
	}
	if len(pageCtx.Headings) > 0 {
		fmt.Fprintf(&b, "- Headings: %s\n", strings.Join(pageCtx.Headings, " | "))
	}
	if len(pageCtx.Links) > 0 {
		fmt.Fprintf(&b, "- Visible links: %s\n", strings.Join(pageCtx.Links, " | "))
	}

	b.WriteString("\nDecide the next action.")
	return b.String()
}

// buildSummaryPrompt renders the narrative-summary request
func buildSummaryPrompt(url string, count int) string {
	return fmt.Sprintf(`The attached %d screenshot(s) were captured while smoke-testing %s
(top of page first, bottom last). Write a short plain-text summary of what
the site presents and anything that looks broken or unpolished. Two or
three sentences, no markdown.`, count, url)
}
