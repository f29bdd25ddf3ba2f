package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Card is a repeated content component such as a feature, service or
// pricing tile.
type Card struct {
	Selector string `json:"selector"`
	Title    string `json:"title"`
	Text     string `json:"text,omitempty"`
	Link     string `json:"link,omitempty"`
	HasImage bool   `json:"hasImage,omitempty"`
}

// ExtractCards matches the card selector table in order. A node matched by
// an earlier selector, or nested inside one, is not reported again.
func ExtractCards(doc *goquery.Document, h Heuristics) []Card {
	h = h.withDefaults()
	banners := CookieBannerNodes(doc, h.CookieBannerPatterns)
	taken := make(map[*html.Node]bool)
	var cards []Card

	for _, selector := range h.CardSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			node := s.Nodes[0]
			if taken[node] || inBanner(s, banners) || nestedIn(node, taken) || wrapsTaken(node, taken) {
				return
			}
			// wrappers holding several cards are containers, not cards
			if s.Children().Length() > 12 {
				return
			}
			title := collapseSpace(s.Find("h1, h2, h3, h4, h5, h6, .card-title, .title, strong").First().Text())
			text := collapseSpace(s.Find("p, .card-text, .description").First().Text())
			if title == "" && text == "" {
				return
			}
			if len(text) > 300 {
				text = truncateAtWord(text, 300)
			}
			taken[node] = true
			cards = append(cards, Card{
				Selector: selector,
				Title:    title,
				Text:     text,
				Link:     strings.TrimSpace(s.Find("a[href]").First().AttrOr("href", "")),
				HasImage: s.Find("img, picture, svg").Length() > 0,
			})
		})
	}
	return cards
}

func nestedIn(n *html.Node, taken map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if taken[p] {
			return true
		}
	}
	return false
}

func wrapsTaken(n *html.Node, taken map[*html.Node]bool) bool {
	for t := range taken {
		for p := t.Parent; p != nil; p = p.Parent {
			if p == n {
				return true
			}
		}
	}
	return false
}
