package pagecontext

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtract_LinksAndHeadings(t *testing.T) {
	html := `
<html><body>
<h1>Welcome to Example</h1>
<nav>
  <a href="/about">About Us</a>
  <a href="/pricing">Pricing</a>
</nav>
<h2>Latest News</h2>
<a href="/blog">Read the blog</a>
</body></html>`

	outline := Extract(html)

	wantLinks := []string{"About Us", "Pricing", "Read the blog"}
	if len(outline.Links) != len(wantLinks) {
		t.Fatalf("links = %v, want %v", outline.Links, wantLinks)
	}
	for i, want := range wantLinks {
		if outline.Links[i] != want {
			t.Errorf("links[%d] = %s, want %s", i, outline.Links[i], want)
		}
	}

	wantHeadings := []string{"Welcome to Example", "Latest News"}
	if len(outline.Headings) != len(wantHeadings) {
		t.Fatalf("headings = %v, want %v", outline.Headings, wantHeadings)
	}
}

func TestExtract_DeduplicatesLinkText(t *testing.T) {
	html := `<body>
<a href="/a">Read more</a>
<a href="/b">Read more</a>
<a href="/c">Contact</a>
</body>`

	outline := Extract(html)
	if len(outline.Links) != 2 {
		t.Errorf("links = %v, want deduplicated pair", outline.Links)
	}
}

func TestExtract_CollapsesAndClipsText(t *testing.T) {
	long := strings.Repeat("verylongword ", 20)
	html := fmt.Sprintf(`<body><a href="/x">  spaced
	out   text </a><h1>%s</h1></body>`, long)

	outline := Extract(html)

	if outline.Links[0] != "spaced out text" {
		t.Errorf("link text = %q, want whitespace collapsed", outline.Links[0])
	}
	if len(outline.Headings[0]) > maxTextLength {
		t.Errorf("heading length = %d, want clipped to %d", len(outline.Headings[0]), maxTextLength)
	}
}

func TestExtract_ClipsMultiByteTextOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("Ü", maxTextLength+20)
	html := fmt.Sprintf("<body><h1>%s</h1></body>", long)

	outline := Extract(html)

	heading := outline.Headings[0]
	if !utf8.ValidString(heading) {
		t.Errorf("clipped heading is not valid UTF-8: %q", heading)
	}
	if got := utf8.RuneCountInString(heading); got != maxTextLength {
		t.Errorf("heading runes = %d, want %d", got, maxTextLength)
	}
}

func TestExtract_CapsLinkAndHeadingCounts(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, `<a href="/l%d">Link %d</a>`, i, i)
		fmt.Fprintf(&sb, "<h2>Heading %d</h2>", i)
	}
	sb.WriteString("</body>")

	outline := Extract(sb.String())

	if len(outline.Links) != maxLinks {
		t.Errorf("links = %d, want cap %d", len(outline.Links), maxLinks)
	}
	if len(outline.Headings) != maxHeadings {
		t.Errorf("headings = %d, want cap %d", len(outline.Headings), maxHeadings)
	}
}

func TestExtract_SkipsEmptyText(t *testing.T) {
	html := `<body><a href="/x"></a><a href="/y">   </a><h1></h1><a href="/z">Real</a></body>`

	outline := Extract(html)
	if len(outline.Links) != 1 || outline.Links[0] != "Real" {
		t.Errorf("links = %v, want only the non-empty one", outline.Links)
	}
	if len(outline.Headings) != 0 {
		t.Errorf("headings = %v, want empty", outline.Headings)
	}
}

func TestExtract_MalformedHTML(t *testing.T) {
	outline := Extract("<<<not html at all")
	if len(outline.Links) != 0 || len(outline.Headings) != 0 {
		t.Errorf("outline = %+v, want empty for unparseable input", outline)
	}
}
