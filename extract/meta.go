package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// recognizedSchemaTypes are the schema.org types search engines render as
// rich results.
var recognizedSchemaTypes = map[string]bool{
	"Organization": true, "LocalBusiness": true, "WebSite": true, "WebPage": true,
	"Article": true, "BlogPosting": true, "NewsArticle": true, "Product": true,
	"Offer": true, "BreadcrumbList": true, "FAQPage": true, "HowTo": true,
	"Event": true, "Recipe": true, "Review": true, "AggregateRating": true,
	"Person": true, "Service": true, "VideoObject": true, "ImageObject": true,
	"ProfessionalService": true, "Restaurant": true, "Store": true, "SoftwareApplication": true,
	"ContactPage": true, "AboutPage": true, "CollectionPage": true, "ItemList": true,
}

// Meta holds the document head signals.
type Meta struct {
	Title          string            `json:"title"`
	Description    string            `json:"metaDescription"`
	Keywords       string            `json:"keywords,omitempty"`
	Canonical      string            `json:"canonical,omitempty"`
	Robots         string            `json:"robots,omitempty"`
	Viewport       string            `json:"viewport,omitempty"`
	Language       string            `json:"language,omitempty"`
	OpenGraph      map[string]string `json:"openGraph,omitempty"`
	StructuredData []string          `json:"structuredData,omitempty"`
	SchemaTypes    []string          `json:"schemaTypes,omitempty"`
	UnknownSchemas []string          `json:"unknownSchemas,omitempty"`
	InvalidJSONLD  int               `json:"invalidJsonLd,omitempty"`
}

// HasStructuredData reports whether at least one JSON-LD block parsed.
func (m Meta) HasStructuredData() bool {
	return len(m.SchemaTypes) > 0 || len(m.UnknownSchemas) > 0
}

// ExtractMeta reads title, meta tags, canonical, robots and JSON-LD blocks.
func ExtractMeta(doc *goquery.Document) Meta {
	meta := Meta{OpenGraph: make(map[string]string)}

	meta.Title = collapseSpace(doc.Find("title").First().Text())
	meta.Description = strings.TrimSpace(doc.Find("meta[name='description'], meta[name='Description']").First().AttrOr("content", ""))
	meta.Keywords = strings.TrimSpace(doc.Find("meta[name='keywords']").First().AttrOr("content", ""))
	meta.Canonical = strings.TrimSpace(doc.Find("link[rel='canonical']").First().AttrOr("href", ""))
	meta.Viewport = strings.TrimSpace(doc.Find("meta[name='viewport']").First().AttrOr("content", ""))
	meta.Language = strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))

	var robots []string
	doc.Find("meta[name='robots'], meta[name='googlebot'], meta[name='ROBOTS']").Each(func(_ int, s *goquery.Selection) {
		if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
			robots = append(robots, content)
		}
	})
	meta.Robots = strings.Join(robots, ", ")

	doc.Find("meta[property^='og:']").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		if content, ok := s.Attr("content"); ok {
			meta.OpenGraph[strings.TrimPrefix(prop, "og:")] = content
		}
	})

	seen := make(map[string]bool)
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		meta.StructuredData = append(meta.StructuredData, raw)

		var payload interface{}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			meta.InvalidJSONLD++
			return
		}
		for _, t := range schemaTypes(payload) {
			if seen[t] {
				continue
			}
			seen[t] = true
			if recognizedSchemaTypes[t] {
				meta.SchemaTypes = append(meta.SchemaTypes, t)
			} else {
				meta.UnknownSchemas = append(meta.UnknownSchemas, t)
			}
		}
	})

	return meta
}

// IsNoIndex reports whether a robots directive string forbids indexing.
func IsNoIndex(directives string) bool {
	for _, token := range strings.FieldsFunc(strings.ToLower(directives), func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	}) {
		if token == "noindex" || token == "none" {
			return true
		}
	}
	return false
}

// schemaTypes walks a decoded JSON-LD value and collects every @type,
// including those nested in @graph arrays.
func schemaTypes(v interface{}) []string {
	var types []string
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			types = append(types, schemaTypes(item)...)
		}
	case map[string]interface{}:
		switch t := val["@type"].(type) {
		case string:
			types = append(types, t)
		case []interface{}:
			for _, item := range t {
				if s, ok := item.(string); ok {
					types = append(types, s)
				}
			}
		}
		if graph, ok := val["@graph"]; ok {
			types = append(types, schemaTypes(graph)...)
		}
	}
	return types
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
