package crawl

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractPage pulls the document title and script sources out of raw
// HTML. Parse failures return empty values; a page we cannot parse
// still gets scored on its headers and certificate.
func ExtractPage(html string) (title string, scripts []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			scripts = append(scripts, src)
		}
	})
	return title, scripts
}
