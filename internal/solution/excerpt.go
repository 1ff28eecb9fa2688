package solution

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an article body and collapses whitespace.
// Text of adjacent block elements is kept apart; script and style are dropped.
func PlainText(bodyHTML string) string {
	if strings.TrimSpace(bodyHTML) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return strings.Join(strings.Fields(bodyHTML), " ")
	}
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			*parts = append(*parts, c.Text())
		case "script", "style":
		default:
			collectText(c, parts)
		}
	})
}

// Excerpt is PlainText cut to at most limit runes, with "..." appended when cut.
func Excerpt(bodyHTML string, limit int) string {
	text := PlainText(bodyHTML)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
