// Package extract pulls structural and textual signals out of a parsed HTML
// document. Every function here is pure: it reads a goquery document and
// returns values, it never performs I/O.
package extract

// TextStrategy is one entry of the prioritised text extraction table.
// Strategies run in order; text already collected by an earlier strategy is
// not collected again.
type TextStrategy struct {
	Name      string `yaml:"name" json:"name"`
	Selector  string `yaml:"selector" json:"selector"`
	MinLength int    `yaml:"min_length" json:"minLength"`
}

// Heuristics is the versioned table of selectors and patterns used by the
// extractors. It can be overridden from the YAML config file.
type Heuristics struct {
	Version              string            `yaml:"version" json:"version"`
	TextStrategies       []TextStrategy    `yaml:"text_strategies" json:"textStrategies"`
	MaxTextChars         int               `yaml:"max_text_chars" json:"maxTextChars"`
	MinParagraphLength   int               `yaml:"min_paragraph_length" json:"minParagraphLength"`
	CookieBannerPatterns []string          `yaml:"cookie_banner_patterns" json:"cookieBannerPatterns"`
	CardSelectors        []string          `yaml:"card_selectors" json:"cardSelectors"`
	CTAKeywords          []string          `yaml:"cta_keywords" json:"ctaKeywords"`
	ButtonClassPatterns  []string          `yaml:"button_class_patterns" json:"buttonClassPatterns"`
	FormPlugins          map[string]string `yaml:"form_plugins" json:"formPlugins"`
	HeadingClassPatterns []string          `yaml:"heading_class_patterns" json:"headingClassPatterns"`
}

// DefaultHeuristics returns the current generation of the heuristics table.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Version: "2",
		TextStrategies: []TextStrategy{
			{Name: "main-paragraphs", Selector: "main p, article p, [role=main] p", MinLength: 20},
			{Name: "content-containers", Selector: ".content p, .entry-content p, .post-content p, #content p, section p", MinLength: 20},
			{Name: "all-paragraphs", Selector: "p", MinLength: 20},
			{Name: "list-items", Selector: "main li, article li, .content li", MinLength: 30},
			{Name: "quotes", Selector: "blockquote", MinLength: 20},
			{Name: "text-blocks", Selector: "div.text, div.description, div.summary, .lead", MinLength: 40},
		},
		MaxTextChars:       15000,
		MinParagraphLength: 20,
		CookieBannerPatterns: []string{
			"cookie", "consent", "gdpr", "ccpa", "onetrust", "cookiebot",
			"cc-banner", "cc-window", "privacy-banner", "truste",
		},
		CardSelectors: []string{
			".card", "[class*='card']", ".feature", ".features > div", ".tile",
			".service", ".services > div", ".pricing-plan", ".product-item",
			".team-member", ".testimonial", ".grid > article",
		},
		CTAKeywords: []string{
			"get started", "sign up", "signup", "register", "buy", "shop", "order",
			"book", "schedule", "contact", "subscribe", "download", "try", "start",
			"join", "request", "learn more", "get a quote", "free trial", "demo",
			"call", "apply", "donate", "add to cart", "checkout",
		},
		ButtonClassPatterns: []string{"btn", "button", "cta", "call-to-action"},
		FormPlugins: map[string]string{
			"wpcf7":          "contact-form-7",
			"gform":          "gravity-forms",
			"hs-form":        "hubspot",
			"hbspt":          "hubspot",
			"mc4wp":          "mailchimp",
			"mc-embedded":    "mailchimp",
			"wpforms":        "wpforms",
			"nf-form":        "ninja-forms",
			"elementor-form": "elementor",
			"typeform":       "typeform",
		},
		HeadingClassPatterns: []string{"title", "heading", "headline", "hero-text", "section-title"},
	}
}

// withDefaults fills zero-valued fields of h from the default table so a
// partial YAML override stays usable.
func (h Heuristics) withDefaults() Heuristics {
	d := DefaultHeuristics()
	if h.Version == "" {
		h.Version = d.Version
	}
	if len(h.TextStrategies) == 0 {
		h.TextStrategies = d.TextStrategies
	}
	if h.MaxTextChars <= 0 {
		h.MaxTextChars = d.MaxTextChars
	}
	if h.MinParagraphLength <= 0 {
		h.MinParagraphLength = d.MinParagraphLength
	}
	if len(h.CookieBannerPatterns) == 0 {
		h.CookieBannerPatterns = d.CookieBannerPatterns
	}
	if len(h.CardSelectors) == 0 {
		h.CardSelectors = d.CardSelectors
	}
	if len(h.CTAKeywords) == 0 {
		h.CTAKeywords = d.CTAKeywords
	}
	if len(h.ButtonClassPatterns) == 0 {
		h.ButtonClassPatterns = d.ButtonClassPatterns
	}
	if len(h.FormPlugins) == 0 {
		h.FormPlugins = d.FormPlugins
	}
	if len(h.HeadingClassPatterns) == 0 {
		h.HeadingClassPatterns = d.HeadingClassPatterns
	}
	return h
}

// Normalize returns h with every empty field replaced by its default.
func (h Heuristics) Normalize() Heuristics {
	return h.withDefaults()
}
