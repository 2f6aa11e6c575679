package process

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"campus-crawler/pkg/models"
)

// nonContentSelector lists elements whose text is never shown to a reader.
const nonContentSelector = "script, style, meta, link, noscript"

// ExtractContent removes non-content elements from doc and returns the
// normalized text of <body>. doc is modified in place.
func ExtractContent(doc *goquery.Document) models.ExtractResult {
	if doc == nil {
		return models.ExtractEmpty()
	}
	doc.Find(nonContentSelector).Remove()

	text := NormalizeText(doc.Find("body").Text())
	if text == "" {
		return models.ExtractEmpty()
	}
	return models.ExtractOk(text)
}

// PageTitle returns the trimmed <title> of doc, if any.
func PageTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// BodyMarkdown converts the <body> of doc to Markdown for the per-page export.
// Call it after ExtractContent so scripts and styles are already gone.
func BodyMarkdown(doc *goquery.Document) (string, error) {
	if doc == nil {
		return "", nil
	}
	bodyHTML, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(bodyHTML)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
