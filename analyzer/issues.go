package analyzer

import (
	"fmt"
	"strings"

	"github.com/seo-optimizer/siteanalyzer/report"
)

// Issue titles. Downstream scoring matches on them.
const (
	IssueMissingTitle          = "Missing title"
	IssueShortTitle            = "Title too short"
	IssueLongTitle             = "Title too long"
	IssueMissingDescription    = "Missing meta description"
	IssueShortDescription      = "Meta description too short"
	IssueLongDescription       = "Meta description too long"
	IssueMissingH1             = "Missing H1"
	IssueMultipleH1            = "Multiple H1 headings"
	IssueMissingAlt            = "Images without alt text"
	IssueLowWordCount          = "Low word count"
	IssueMissingStructuredData = "Missing structured data"
	IssueUnknownStructuredData = "Unrecognized structured data"
	IssueInvalidStructuredData = "Invalid structured data"
	IssueMissingCanonical      = "Missing canonical URL"
	IssueMissingViewport       = "Missing viewport"
	IssueLargePage             = "Large page size"
	IssueSlowResponse          = "Slow page response"
)

const (
	minTitleLength       = 30
	maxTitleLength       = 60
	minDescriptionLength = 120
	maxDescriptionLength = 160
	minWordCount         = 300
)

func issue(category string, severity report.Severity, title, description string) report.SeoIssue {
	return report.SeoIssue{Category: category, Severity: severity, Title: title, Description: description}
}

// DetectIssues derives the rule-based issues of a page.
func DetectIssues(p *report.PageAnalysisResult, unknownSchemas []string, invalidJSONLD int) []report.SeoIssue {
	issues := make([]report.SeoIssue, 0, 8)

	titleLen := len([]rune(p.Title))
	switch {
	case titleLen == 0:
		issues = append(issues, issue(report.CategoryTitle, report.SeverityCritical, IssueMissingTitle,
			"Add a title tag to your page"))
	case titleLen < minTitleLength:
		issues = append(issues, issue(report.CategoryTitle, report.SeverityWarning, IssueShortTitle,
			fmt.Sprintf("Title is %d characters; aim for %d-%d", titleLen, minTitleLength, maxTitleLength)))
	case titleLen > maxTitleLength:
		issues = append(issues, issue(report.CategoryTitle, report.SeverityWarning, IssueLongTitle,
			fmt.Sprintf("Title is %d characters; aim for %d-%d", titleLen, minTitleLength, maxTitleLength)))
	}

	descLen := len([]rune(p.MetaDescription))
	switch {
	case descLen == 0:
		issues = append(issues, issue(report.CategoryMeta, report.SeverityCritical, IssueMissingDescription,
			"Add a meta description"))
	case descLen < minDescriptionLength:
		issues = append(issues, issue(report.CategoryMeta, report.SeverityWarning, IssueShortDescription,
			fmt.Sprintf("Meta description is %d characters; aim for %d-%d", descLen, minDescriptionLength, maxDescriptionLength)))
	case descLen > maxDescriptionLength:
		issues = append(issues, issue(report.CategoryMeta, report.SeverityWarning, IssueLongDescription,
			fmt.Sprintf("Meta description is %d characters; aim for %d-%d", descLen, minDescriptionLength, maxDescriptionLength)))
	}

	switch h1 := p.H1Count(); {
	case h1 == 0:
		issues = append(issues, issue(report.CategoryHeadings, report.SeverityCritical, IssueMissingH1,
			"Add an H1 heading"))
	case h1 > 1:
		issues = append(issues, issue(report.CategoryHeadings, report.SeverityWarning, IssueMultipleH1,
			fmt.Sprintf("Found %d H1 headings; consider using only one", h1)))
	}

	missingAlt := 0
	for _, img := range p.Images {
		if strings.TrimSpace(img.Alt) == "" {
			missingAlt++
		}
	}
	if missingAlt > 0 {
		issues = append(issues, issue(report.CategoryImages, report.SeverityWarning, IssueMissingAlt,
			fmt.Sprintf("%d of %d images have no alt text", missingAlt, len(p.Images))))
	}

	if p.WordCount < minWordCount {
		issues = append(issues, issue(report.CategoryContent, report.SeverityWarning, IssueLowWordCount,
			fmt.Sprintf("Page has %d words; aim for at least %d", p.WordCount, minWordCount)))
	}

	if len(p.SchemaTypes) == 0 && len(unknownSchemas) == 0 && invalidJSONLD == 0 {
		issues = append(issues, issue(report.CategoryStructuredData, report.SeverityInfo, IssueMissingStructuredData,
			"Add JSON-LD structured data describing the page"))
	}
	if len(unknownSchemas) > 0 {
		issues = append(issues, issue(report.CategoryStructuredData, report.SeverityInfo, IssueUnknownStructuredData,
			"Unrecognized schema types: "+strings.Join(unknownSchemas, ", ")))
	}
	if invalidJSONLD > 0 {
		issues = append(issues, issue(report.CategoryStructuredData, report.SeverityWarning, IssueInvalidStructuredData,
			fmt.Sprintf("%d JSON-LD block(s) could not be parsed", invalidJSONLD)))
	}

	if p.Canonical == "" {
		issues = append(issues, issue(report.CategoryTechnical, report.SeverityInfo, IssueMissingCanonical,
			"Add a canonical link to avoid duplicate content"))
	}
	if p.Viewport == "" {
		issues = append(issues, issue(report.CategoryTechnical, report.SeverityWarning, IssueMissingViewport,
			`Add a viewport meta tag (e.g. <meta name="viewport" content="width=device-width, initial-scale=1">)`))
	}

	pageSizeKB := float64(p.PageSize) / 1024.0
	switch {
	case pageSizeKB > 2048:
		issues = append(issues, issue(report.CategoryTechnical, report.SeverityWarning, IssueLargePage,
			"Page size is very large (>2MB). Optimize images and lazy load non-critical resources"))
	case pageSizeKB > 1024:
		issues = append(issues, issue(report.CategoryTechnical, report.SeverityInfo, IssueLargePage,
			"Page size is large (>1MB). Look for opportunities to optimize images and resources"))
	}
	if p.LoadTimeMs > 3000 {
		issues = append(issues, issue(report.CategoryTechnical, report.SeverityWarning, IssueSlowResponse,
			"Page took more than 3s to load"))
	}

	return issues
}
