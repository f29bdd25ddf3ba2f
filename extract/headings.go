package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Heading is a semantic or heuristically detected heading.
type Heading struct {
	Level     int    `json:"level"`
	Text      string `json:"text"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

// ExtractHeadings returns h1-h6 in document order followed by elements that
// look like headings without using heading tags. Texts are de-duplicated.
func ExtractHeadings(doc *goquery.Document, h Heuristics) []Heading {
	h = h.withDefaults()
	var headings []Heading
	seen := make(map[string]bool)

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		key := strconv.Itoa(level) + "|" + strings.ToLower(text)
		if seen[key] {
			return
		}
		seen[key] = true
		headings = append(headings, Heading{Level: level, Text: text})
	})

	// role=heading carries its level in aria-level
	doc.Find("[role='heading']").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" || seenText(seen, text) {
			return
		}
		level, err := strconv.Atoi(s.AttrOr("aria-level", "2"))
		if err != nil || level < 1 || level > 6 {
			level = 2
		}
		seen[strconv.Itoa(level)+"|"+strings.ToLower(text)] = true
		headings = append(headings, Heading{Level: level, Text: text, Heuristic: true})
	})

	doc.Find("div, span, p, strong, b").Each(func(_ int, s *goquery.Selection) {
		if !looksLikeHeading(s, h.HeadingClassPatterns) {
			return
		}
		text := collapseSpace(s.Text())
		if seenText(seen, text) {
			return
		}
		seen["3|"+strings.ToLower(text)] = true
		headings = append(headings, Heading{Level: 3, Text: text, Heuristic: true})
	})

	return headings
}

// CountLevel returns how many headings of the given level are present.
func CountLevel(headings []Heading, level int) int {
	n := 0
	for _, h := range headings {
		if h.Level == level && !h.Heuristic {
			n++
		}
	}
	return n
}

func seenText(seen map[string]bool, text string) bool {
	lower := strings.ToLower(text)
	for level := 1; level <= 6; level++ {
		if seen[strconv.Itoa(level)+"|"+lower] {
			return true
		}
	}
	return false
}

// looksLikeHeading matches short standalone text blocks carrying a
// heading-ish class, or a bold paragraph that is the only child content.
func looksLikeHeading(s *goquery.Selection, classPatterns []string) bool {
	if s.Find("h1, h2, h3, h4, h5, h6, p, div, ul, ol, table").Length() > 0 {
		return false
	}
	text := collapseSpace(s.Text())
	words := len(strings.Fields(text))
	if words == 0 || words > 12 || len(text) > 120 {
		return false
	}
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, ",") {
		return false
	}
	if s.ParentsFiltered("a, button, nav, footer, label").Length() > 0 {
		return false
	}

	class := strings.ToLower(s.AttrOr("class", ""))
	for _, pattern := range classPatterns {
		if class != "" && strings.Contains(class, pattern) {
			return true
		}
	}

	name := goquery.NodeName(s)
	if name == "strong" || name == "b" {
		parent := s.Parent()
		if goquery.NodeName(parent) == "p" && collapseSpace(parent.Text()) == text {
			return true
		}
	}
	return false
}
