package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// TextContent is the readable text of a page.
type TextContent struct {
	Paragraphs []string `json:"paragraphs"`
	Sentences  []string `json:"sentences"`
	FullText   string   `json:"fullText"`
	Strategy   string   `json:"strategy,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
}

const boilerplateSelector = "script, style, noscript, template, svg, iframe, nav, header, footer, aside, form"

// ExtractText runs the prioritised text strategies and falls back to a
// whole-body scrape when none of them yields a paragraph.
func ExtractText(doc *goquery.Document, h Heuristics) TextContent {
	h = h.withDefaults()
	var content TextContent
	seen := make(map[string]bool)
	var collected []*html.Node
	total := 0

	for _, strategy := range h.TextStrategies {
		if total >= h.MaxTextChars {
			break
		}
		minLen := strategy.MinLength
		if minLen <= 0 {
			minLen = h.MinParagraphLength
		}
		found := 0
		doc.Find(strategy.Selector).Each(func(_ int, s *goquery.Selection) {
			if total >= h.MaxTextChars {
				return
			}
			if s.ParentsFiltered(boilerplateSelector).Length() > 0 {
				return
			}
			node := s.Get(0)
			if nested(node, collected) {
				return
			}
			text := collapseSpace(s.Text())
			if len(text) < minLen {
				return
			}
			key := strings.ToLower(text)
			if seen[key] || containedIn(seen, key) {
				return
			}
			seen[key] = true
			collected = append(collected, node)
			if remaining := h.MaxTextChars - total; len(text) > remaining {
				text = truncateAtWord(text, remaining)
				content.Truncated = true
			}
			content.Paragraphs = append(content.Paragraphs, text)
			total += len(text)
			found++
		})
		if found > 0 && content.Strategy == "" {
			content.Strategy = strategy.Name
		}
	}

	if len(content.Paragraphs) == 0 {
		text := BodyText(doc)
		if len(text) > h.MaxTextChars {
			text = truncateAtWord(text, h.MaxTextChars)
			content.Truncated = true
		}
		if text != "" {
			content.Paragraphs = splitBlocks(text, h.MinParagraphLength)
			if len(content.Paragraphs) == 0 {
				content.Paragraphs = []string{text}
			}
			content.Strategy = "body-fallback"
		}
	}

	content.FullText = strings.Join(content.Paragraphs, "\n\n")
	content.Sentences = SplitSentences(content.FullText)
	return content
}

// BodyText strips boilerplate elements from a copy of the body and returns
// its collapsed text.
func BodyText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return collapseSpace(doc.Text())
	}
	clone := body.Clone()
	clone.Find(boilerplateSelector).Remove()

	var b strings.Builder
	clone.Find("*").AddSelection(clone).Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					if t := strings.TrimSpace(c.Data); t != "" {
						b.WriteString(t)
						b.WriteString("\n")
					}
				}
			}
		}
	})
	if b.Len() == 0 {
		return collapseSpace(clone.Text())
	}
	return strings.TrimSpace(b.String())
}

// SplitSentences breaks text on terminal punctuation followed by whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); len(strings.Fields(s)) >= 3 {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); len(strings.Fields(s)) >= 3 {
		sentences = append(sentences, s)
	}
	return sentences
}

func splitBlocks(text string, minLen int) []string {
	var blocks []string
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpace(line)
		if len(line) >= minLen {
			blocks = append(blocks, line)
		}
	}
	return blocks
}

// containedIn reports whether key is a substring of an already collected
// block, which happens when a strategy matches a child of an earlier match.
func containedIn(seen map[string]bool, key string) bool {
	for s := range seen {
		if len(s) > len(key) && strings.Contains(s, key) {
			return true
		}
	}
	return false
}

// nested reports whether n is inside, or contains, an already collected
// block.
func nested(n *html.Node, collected []*html.Node) bool {
	for _, c := range collected {
		if isAncestor(c, n) || isAncestor(n, c) {
			return true
		}
	}
	return false
}

func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

func truncateAtWord(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return strings.TrimSpace(s[:cut])
}
