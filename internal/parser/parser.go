package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SEOData represents extracted SEO information.
// Missing elements yield false flags and empty strings; text is HTML-decoded.
type SEOData struct {
	HasTitle       bool
	Title          string
	HasDescription bool
	Description    string
	HasH1          bool
}

// ImageStats counts <img> elements and those carrying a non-empty alt text.
type ImageStats struct {
	Total   int
	WithAlt int
}

// AccessibilityData holds the element counts used by accessibility scoring.
type AccessibilityData struct {
	Images        ImageStats
	LabelsWithFor int
	FormControls  int
	H1Count       int
	AriaLabelled  int
}

// ParseResult aggregates HTML analysis results.
type ParseResult struct {
	SEO           SEOData
	Images        ImageStats
	Accessibility AccessibilityData
}

// ParseHTML parses HTML and extracts SEO, image and accessibility data.
func ParseHTML(body []byte) (ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ParseResult{}, err
	}

	images := parseImages(doc)

	return ParseResult{
		SEO:           parseSEO(doc),
		Images:        images,
		Accessibility: parseAccessibility(doc, images),
	}, nil
}

func parseSEO(doc *goquery.Document) SEOData {
	seo := SEOData{}

	titleSelection := doc.Find("title").First()
	seo.HasTitle = titleSelection.Length() > 0
	if seo.HasTitle {
		seo.Title = cleanHumanText(titleSelection.Text())
	}

	hasDescription, description := findMetaDescription(doc)
	seo.HasDescription = hasDescription
	seo.Description = description

	seo.HasH1 = doc.Find("h1").Length() > 0

	return seo
}

func findMetaDescription(doc *goquery.Document) (bool, string) {
	var (
		found       bool
		description string
	)

	doc.Find(`meta[name="description"]`).EachWithBreak(func(_ int, selection *goquery.Selection) bool {
		found = true
		content, _ := selection.Attr("content")
		description = cleanHumanText(content)

		return false
	})

	return found, description
}

func parseImages(doc *goquery.Document) ImageStats {
	stats := ImageStats{}

	doc.Find("img").Each(func(_ int, selection *goquery.Selection) {
		stats.Total++

		if hasNonEmptyAttr(selection, "alt") {
			stats.WithAlt++
		}
	})

	return stats
}

func parseAccessibility(doc *goquery.Document, images ImageStats) AccessibilityData {
	data := AccessibilityData{
		Images:       images,
		FormControls: doc.Find("input, select, textarea").Length(),
		H1Count:      doc.Find("h1").Length(),
		AriaLabelled: doc.Find("[aria-label]").Length(),
	}

	doc.Find("label").Each(func(_ int, selection *goquery.Selection) {
		if hasNonEmptyAttr(selection, "for") {
			data.LabelsWithFor++
		}
	})

	return data
}

// hasNonEmptyAttr reports whether the attribute is present with a value.
// Whitespace-only values still count, matching plain truthiness of the string.
func hasNonEmptyAttr(selection *goquery.Selection, attr string) bool {
	value, ok := selection.Attr(attr)

	return ok && value != ""
}

// cleanHumanText collapses runs of whitespace and trims the result.
// goquery already decodes entities in text nodes and attribute values.
func cleanHumanText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
