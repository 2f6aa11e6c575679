package process

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/parse"
)

// ExtractLinks returns the canonical same-origin URLs linked from doc, deduplicated,
// in document order. Every href is resolved against the site root of base (not the
// page URL), matching how the site's own relative links are written.
func ExtractLinks(doc *goquery.Document, base *url.URL, log *logrus.Entry) []string {
	if doc == nil || base == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	skipped := 0

	doc.Find("a[href]").Each(func(_ int, element *goquery.Selection) {
		href, _ := element.Attr("href")
		link, ok := parse.ResolveReference(base, href)
		if !ok {
			skipped++
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	if log != nil {
		log.WithFields(logrus.Fields{"links": len(links), "skipped": skipped}).Trace("Extracted links")
	}
	return links
}
