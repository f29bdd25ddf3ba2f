package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Image is an <img> element with its src resolved against the page URL.
type Image struct {
	Src          string `json:"src"`
	Alt          string `json:"alt"`
	HasAlt       bool   `json:"hasAlt"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Loading      string `json:"loading,omitempty"`
	SuggestedAlt string `json:"suggestedAlt,omitempty"`
}

// Link is an anchor with its href resolved against the page URL.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	NoFollow bool   `json:"noFollow,omitempty"`
}

// ExtractImages returns every <img> with a src.
func ExtractImages(doc *goquery.Document, pageURL string) []Image {
	base, _ := url.Parse(pageURL)
	var images []Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}
		alt, hasAlt := s.Attr("alt")
		images = append(images, Image{
			Src:     resolve(base, src),
			Alt:     strings.TrimSpace(alt),
			HasAlt:  hasAlt && strings.TrimSpace(alt) != "",
			Width:   atoiPrefix(s.AttrOr("width", "")),
			Height:  atoiPrefix(s.AttrOr("height", "")),
			Loading: s.AttrOr("loading", ""),
		})
	})
	return images
}

// ExtractLinks classifies anchors into internal and external links.
// Fragment-only links, links pointing back at the page itself and
// non-navigational schemes are skipped. Both slices are de-duplicated.
func ExtractLinks(doc *goquery.Document, pageURL string) (internal, external []Link) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil
	}
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") ||
			strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		u := page.ResolveReference(ref)
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""

		if samePage(page, u) {
			return
		}

		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		link := Link{
			URL:      abs,
			Text:     anchorText(s),
			NoFollow: strings.Contains(strings.ToLower(s.AttrOr("rel", "")), "nofollow"),
		}
		if SameSite(page.Hostname(), u.Hostname()) {
			internal = append(internal, link)
		} else {
			external = append(external, link)
		}
	})
	return internal, external
}

// SameSite compares hostnames ignoring case and a leading "www.".
func SameSite(a, b string) bool {
	return strings.TrimPrefix(strings.ToLower(a), "www.") == strings.TrimPrefix(strings.ToLower(b), "www.")
}

func samePage(page, u *url.URL) bool {
	if !SameSite(page.Hostname(), u.Hostname()) {
		return false
	}
	p1 := strings.TrimSuffix(page.Path, "/")
	p2 := strings.TrimSuffix(u.Path, "/")
	return p1 == p2 && page.RawQuery == u.RawQuery
}

func anchorText(s *goquery.Selection) string {
	text := collapseSpace(s.Text())
	if text != "" {
		return text
	}
	if label := strings.TrimSpace(s.AttrOr("aria-label", "")); label != "" {
		return label
	}
	if title := strings.TrimSpace(s.AttrOr("title", "")); title != "" {
		return title
	}
	return strings.TrimSpace(s.Find("img").First().AttrOr("alt", ""))
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// atoiPrefix parses the leading digits of values like "640" or "640px".
func atoiPrefix(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

var genericAnchors = map[string]bool{
	"click here": true, "here": true, "read more": true, "learn more": true, "more": true,
	"this": true, "link": true, "this link": true, "continue": true, "go": true,
	"details": true, "more info": true, "see more": true, "view more": true, "page": true,
}

// IsGenericAnchor reports whether an anchor text carries no description of
// its target.
func IsGenericAnchor(text string) bool {
	t := strings.ToLower(strings.Trim(collapseSpace(text), " .:!»›→"))
	return t == "" || genericAnchors[t]
}
