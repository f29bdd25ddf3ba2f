package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CTA types.
const (
	CTAButton      = "button"
	CTAInputButton = "input-button"
	CTALinkButton  = "link-button"
	CTAAriaRole    = "aria-role"
	CTAForm        = "form"
)

// CTA is a call-to-action element.
type CTA struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Href     string `json:"href,omitempty"`
	FormType string `json:"formType,omitempty"`
	Plugin   string `json:"plugin,omitempty"`
	Fields   int    `json:"fields,omitempty"`
	Location string `json:"location,omitempty"`
}

// ExtractCTAs finds buttons, link-buttons, ARIA interactive elements and
// forms. Anything inside a cookie or consent banner is ignored.
func ExtractCTAs(doc *goquery.Document, pageURL string, h Heuristics) []CTA {
	h = h.withDefaults()
	base, _ := url.Parse(pageURL)
	banners := CookieBannerNodes(doc, h.CookieBannerPatterns)

	var ctas []CTA
	seen := make(map[string]bool)
	add := func(c CTA) {
		if c.Text == "" && c.Type != CTAForm {
			return
		}
		key := c.Type + "|" + strings.ToLower(c.Text) + "|" + c.Href
		if seen[key] {
			return
		}
		seen[key] = true
		ctas = append(ctas, c)
	}

	doc.Find("button").Each(func(_ int, s *goquery.Selection) {
		if inBanner(s, banners) || s.AttrOr("type", "") == "reset" {
			return
		}
		// submit buttons are reported with their form
		if s.ParentsFiltered("form").Length() > 0 && strings.ToLower(s.AttrOr("type", "submit")) == "submit" {
			return
		}
		add(CTA{Type: CTAButton, Text: elementLabel(s), Location: location(s)})
	})

	doc.Find("input[type='submit'], input[type='button']").Each(func(_ int, s *goquery.Selection) {
		if inBanner(s, banners) || s.ParentsFiltered("form").Length() > 0 {
			return
		}
		add(CTA{Type: CTAInputButton, Text: strings.TrimSpace(s.AttrOr("value", "")), Location: location(s)})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if inBanner(s, banners) {
			return
		}
		if !isLinkButton(s, h) {
			return
		}
		add(CTA{
			Type:     CTALinkButton,
			Text:     elementLabel(s),
			Href:     resolve(base, strings.TrimSpace(s.AttrOr("href", ""))),
			Location: location(s),
		})
	})

	doc.Find("[role='button'], [role='link'][tabindex], [role='menuitem'][onclick], [role='tab'][onclick]").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if name == "a" || name == "button" || inBanner(s, banners) {
			return
		}
		add(CTA{Type: CTAAriaRole, Text: elementLabel(s), Location: location(s)})
	})

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		if inBanner(s, banners) {
			return
		}
		fields := s.Find("input:not([type='hidden']):not([type='submit']):not([type='button']), textarea, select").Length()
		submit := s.Find("button, input[type='submit']").First()
		text := ""
		if submit.Length() > 0 {
			text = elementLabel(submit)
			if text == "" {
				text = strings.TrimSpace(submit.AttrOr("value", ""))
			}
		}
		add(CTA{
			Type:     CTAForm,
			Text:     text,
			Href:     resolve(base, strings.TrimSpace(s.AttrOr("action", ""))),
			FormType: formType(s),
			Plugin:   formPlugin(s, h.FormPlugins),
			Fields:   fields,
			Location: location(s),
		})
	})

	return ctas
}

// CookieBannerNodes returns the elements whose id, class or aria-label
// matches one of the banner patterns.
func CookieBannerNodes(doc *goquery.Document, patterns []string) map[*html.Node]bool {
	nodes := make(map[*html.Node]bool)
	doc.Find("[id], [class], [aria-label]").Each(func(_ int, s *goquery.Selection) {
		attrs := strings.ToLower(s.AttrOr("id", "") + " " + s.AttrOr("class", "") + " " + s.AttrOr("aria-label", ""))
		for _, p := range patterns {
			if strings.Contains(attrs, p) {
				nodes[s.Nodes[0]] = true
				return
			}
		}
	})
	return nodes
}

func inBanner(s *goquery.Selection, banners map[*html.Node]bool) bool {
	if len(banners) == 0 || len(s.Nodes) == 0 {
		return false
	}
	for n := s.Nodes[0]; n != nil; n = n.Parent {
		if banners[n] {
			return true
		}
	}
	return false
}

func isLinkButton(s *goquery.Selection, h Heuristics) bool {
	if s.AttrOr("role", "") == "button" {
		return true
	}
	class := strings.ToLower(s.AttrOr("class", ""))
	for _, p := range h.ButtonClassPatterns {
		if strings.Contains(class, p) {
			return true
		}
	}
	// short keyword links inside the hero or header read as CTAs
	text := strings.ToLower(elementLabel(s))
	if text == "" || len(strings.Fields(text)) > 5 {
		return false
	}
	if s.ParentsFiltered("nav, footer").Length() > 0 {
		return false
	}
	for _, kw := range h.CTAKeywords {
		if strings.HasPrefix(text, kw) {
			return true
		}
	}
	return false
}

func formType(s *goquery.Selection) string {
	attrs := strings.ToLower(s.AttrOr("id", "") + " " + s.AttrOr("class", "") + " " + s.AttrOr("action", "") + " " + s.AttrOr("role", ""))
	switch {
	case s.Find("input[type='search']").Length() > 0 || strings.Contains(attrs, "search"):
		return "search"
	case s.Find("input[type='password']").Length() > 0 || strings.Contains(attrs, "login") || strings.Contains(attrs, "signin"):
		return "login"
	case strings.Contains(attrs, "checkout") || strings.Contains(attrs, "cart"):
		return "checkout"
	case strings.Contains(attrs, "newsletter") || strings.Contains(attrs, "subscribe") ||
		(s.Find("input[type='email']").Length() == 1 && s.Find("textarea").Length() == 0 &&
			s.Find("input:not([type='hidden']):not([type='submit'])").Length() <= 2):
		return "newsletter"
	case s.Find("textarea").Length() > 0 || strings.Contains(attrs, "contact"):
		return "contact"
	}
	return "other"
}

func formPlugin(s *goquery.Selection, plugins map[string]string) string {
	attrs := strings.ToLower(s.AttrOr("id", "") + " " + s.AttrOr("class", "") + " " + s.AttrOr("action", ""))
	parent := s.Parent()
	if parent.Length() > 0 {
		attrs += " " + strings.ToLower(parent.AttrOr("class", "")+" "+parent.AttrOr("id", ""))
	}
	// deterministic: longest fingerprint wins
	best := ""
	bestKey := ""
	for key, name := range plugins {
		if !strings.Contains(attrs, key) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			best, bestKey = name, key
		}
	}
	return best
}

func elementLabel(s *goquery.Selection) string {
	if text := collapseSpace(s.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "title", "value"} {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func location(s *goquery.Selection) string {
	switch {
	case s.ParentsFiltered("header, nav").Length() > 0:
		return "header"
	case s.ParentsFiltered("footer").Length() > 0:
		return "footer"
	case s.ParentsFiltered("aside").Length() > 0:
		return "sidebar"
	}
	return "main"
}
