// Package report holds the data model shared by the pipeline stages.
package report

import "github.com/seo-optimizer/siteanalyzer/extract"

// Severity of an SEO issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the three known tiers.
func (s Severity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// Issue categories.
const (
	CategoryTitle          = "title"
	CategoryMeta           = "meta"
	CategoryHeadings       = "headings"
	CategoryImages         = "images"
	CategoryContent        = "content"
	CategoryStructuredData = "structured-data"
	CategoryTechnical      = "technical"
)

// SeoIssue is a rule-derived finding about a page.
type SeoIssue struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// KeywordDensity is a keyword with its count and percentage of all words.
type KeywordDensity struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Density float64 `json:"density"`
}

// PageAnalysisResult is the analysis of a single URL. Suggestions, Teaser
// and AdditionalSuggestions are filled later by the insights stage.
type PageAnalysisResult struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	MetaDescription string   `json:"metaDescription"`
	Canonical       string   `json:"canonical,omitempty"`
	Robots          string   `json:"robots,omitempty"`
	Viewport        string   `json:"viewport,omitempty"`
	Language        string   `json:"language,omitempty"`
	SchemaTypes     []string `json:"schemaTypes,omitempty"`

	Headings      []extract.Heading `json:"headings"`
	Images        []extract.Image   `json:"images"`
	InternalLinks []extract.Link    `json:"internalLinks"`
	ExternalLinks []extract.Link    `json:"externalLinks"`
	CTAs          []extract.CTA     `json:"ctaElements"`
	Cards         []extract.Card    `json:"cards,omitempty"`

	Paragraphs []string `json:"paragraphs"`
	Sentences  []string `json:"sentences"`
	FullText   string   `json:"fullText"`

	Issues           []SeoIssue       `json:"issues"`
	WordCount        int              `json:"wordCount"`
	ReadabilityScore float64          `json:"readabilityScore"`
	KeywordDensity   []KeywordDensity `json:"keywordDensity"`
	SemanticPhrases  []string         `json:"semanticPhrases,omitempty"`
	ContentDepth     float64          `json:"contentDepth"`

	Suggestions           []string `json:"suggestions,omitempty"`
	Teaser                string   `json:"teaser,omitempty"`
	AdditionalSuggestions int      `json:"additionalSuggestions,omitempty"`

	StatusCode int   `json:"statusCode,omitempty"`
	PageSize   int   `json:"pageSize,omitempty"`
	LoadTimeMs int64 `json:"loadTimeMs,omitempty"`
	// Partial is set when the page was rebuilt from crawl metadata after the
	// full fetch failed.
	Partial bool `json:"partial,omitempty"`
}

// H1Count returns the number of semantic h1 headings.
func (p *PageAnalysisResult) H1Count() int {
	return extract.CountLevel(p.Headings, 1)
}

// FirstHeading returns the text of the first heading, or "".
func (p *PageAnalysisResult) FirstHeading() string {
	if len(p.Headings) == 0 {
		return ""
	}
	return p.Headings[0].Text
}

// HasIssue reports whether the page carries an issue with the given title.
func (p *PageAnalysisResult) HasIssue(title string) bool {
	for _, issue := range p.Issues {
		if issue.Title == title {
			return true
		}
	}
	return false
}

// CrawlMeta is the basic SEO data harvested while crawling a page.
type CrawlMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	H1          string `json:"h1"`
	StatusCode  int    `json:"statusCode"`
}
