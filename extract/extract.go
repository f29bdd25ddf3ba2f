package extract

import "github.com/PuerkitoBio/goquery"

// Extraction bundles everything the extractors read from one document.
type Extraction struct {
	Meta     Meta
	Headings []Heading
	Images   []Image
	Internal []Link
	External []Link
	CTAs     []CTA
	Cards    []Card
	Text     TextContent
}

// Extract runs every extractor over doc.
func Extract(doc *goquery.Document, pageURL string, h Heuristics) Extraction {
	h = h.withDefaults()
	internal, external := ExtractLinks(doc, pageURL)
	return Extraction{
		Meta:     ExtractMeta(doc),
		Headings: ExtractHeadings(doc, h),
		Images:   ExtractImages(doc, pageURL),
		Internal: internal,
		External: external,
		CTAs:     ExtractCTAs(doc, pageURL, h),
		Cards:    ExtractCards(doc, h),
		Text:     ExtractText(doc, h),
	}
}
