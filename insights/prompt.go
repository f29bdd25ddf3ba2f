package insights

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	maxSummaryPages      = 10
	maxSummaryHeadings   = 5
	maxSummaryParagraphs = 2
	maxSummaryText       = 300
	maxLinkTargets       = 5
)

const suggestionSystemPrompt = `You are an SEO consultant. Answer with a JSON object of the form {"suggestions": ["..."]}. ` +
	`Each suggestion is one concrete, page specific action in plain text without markup.`

const businessSystemPrompt = `You analyse websites. Answer with a JSON object with the keys ` +
	`"industry", "businessType", "targetAudience", "mainServices" (array of strings) and "location".`

// PageSummary is the lightweight view of a page sent to the AI service.
type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"metaDescription,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Paragraphs  []string `json:"paragraphs,omitempty"`
}

// Summarize builds the site structure summary from the analyzed pages.
func Summarize(pages []*report.PageAnalysisResult) []PageSummary {
	out := make([]PageSummary, 0, min(len(pages), maxSummaryPages))
	for _, p := range pages {
		if len(out) == maxSummaryPages {
			break
		}
		s := PageSummary{URL: p.URL, Title: p.Title, Description: p.MetaDescription}
		for _, h := range p.Headings {
			if len(s.Headings) == maxSummaryHeadings {
				break
			}
			s.Headings = append(s.Headings, fmt.Sprintf("H%d: %s", h.Level, h.Text))
		}
		for _, para := range p.Paragraphs {
			if len(s.Paragraphs) == maxSummaryParagraphs {
				break
			}
			s.Paragraphs = append(s.Paragraphs, clip(para, maxSummaryText))
		}
		out = append(out, s)
	}
	return out
}

// LinkTarget is a page worth linking to from the page being improved.
type LinkTarget struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Shared        []string `json:"sharedKeywords"`
	AlreadyLinked bool     `json:"alreadyLinked"`
}

// LinkTargets ranks the other pages by the number of keywords they share
// with page and returns the best ones.
func LinkTargets(page *report.PageAnalysisResult, pages []*report.PageAnalysisResult) []LinkTarget {
	own := pageKeywords(page)
	linked := make(map[string]bool, len(page.InternalLinks))
	for _, l := range page.InternalLinks {
		linked[strings.TrimSuffix(l.URL, "/")] = true
	}

	var targets []LinkTarget
	for _, other := range pages {
		if other.URL == page.URL {
			continue
		}
		var shared []string
		for kw := range pageKeywords(other) {
			if own[kw] {
				shared = append(shared, kw)
			}
		}
		if len(shared) == 0 {
			continue
		}
		sort.Strings(shared)
		targets = append(targets, LinkTarget{
			URL:           other.URL,
			Title:         other.Title,
			Shared:        shared,
			AlreadyLinked: linked[strings.TrimSuffix(other.URL, "/")],
		})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		if len(targets[i].Shared) != len(targets[j].Shared) {
			return len(targets[i].Shared) > len(targets[j].Shared)
		}
		return targets[i].URL < targets[j].URL
	})
	if len(targets) > maxLinkTargets {
		targets = targets[:maxLinkTargets]
	}
	return targets
}

func pageKeywords(p *report.PageAnalysisResult) map[string]bool {
	kws := make(map[string]bool)
	for _, kd := range p.KeywordDensity {
		kws[kd.Keyword] = true
	}
	for _, w := range strings.Fields(strings.ToLower(p.Title + " " + p.FirstHeading())) {
		w = strings.Trim(w, ".,:;!?|-–()\"'")
		if len([]rune(w)) >= 4 {
			kws[w] = true
		}
	}
	return kws
}

func buildSuggestionPrompt(page *report.PageAnalysisResult, site []*report.PageAnalysisResult, bctx report.BusinessContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Business: %s (%s), audience: %s", bctx.Industry, bctx.BusinessType, bctx.TargetAudience)
	if len(bctx.MainServices) > 0 {
		fmt.Fprintf(&b, ", services: %s", strings.Join(bctx.MainServices, ", "))
	}
	if bctx.Location != "" {
		fmt.Fprintf(&b, ", location: %s", bctx.Location)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "PAGE %s\nTitle (%d chars): %s\nMeta description (%d chars): %s\n",
		page.URL, len([]rune(page.Title)), page.Title, len([]rune(page.MetaDescription)), page.MetaDescription)

	b.WriteString("\nHEADINGS\n")
	for _, h := range page.Headings {
		fmt.Fprintf(&b, "%sH%d %s\n", strings.Repeat("  ", max(h.Level-1, 0)), h.Level, h.Text)
	}

	fmt.Fprintf(&b, "\nCONTENT\nWords: %d, readability: %.0f/100, depth: %.0f/100\n",
		page.WordCount, page.ReadabilityScore, page.ContentDepth)
	if len(page.KeywordDensity) > 0 {
		kws := make([]string, 0, len(page.KeywordDensity))
		for _, kd := range page.KeywordDensity {
			kws = append(kws, fmt.Sprintf("%s (%.1f%%)", kd.Keyword, kd.Density))
		}
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(kws, ", "))
	}
	if len(page.Paragraphs) > 0 {
		fmt.Fprintf(&b, "Opening: %s\n", clip(page.Paragraphs[0], maxSummaryText))
	}

	if len(page.Issues) > 0 {
		b.WriteString("\nISSUES\n")
		for _, is := range page.Issues {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", is.Severity, is.Title, is.Description)
		}
	}

	generic := 0
	for _, l := range page.InternalLinks {
		if extract.IsGenericAnchor(l.Text) {
			generic++
		}
	}
	fmt.Fprintf(&b, "\nINTERNAL LINKS\n%d internal links, %d with generic anchor text, %d external links\n",
		len(page.InternalLinks), generic, len(page.ExternalLinks))

	if targets := LinkTargets(page, site); len(targets) > 0 {
		b.WriteString("\nLINK TARGETS (ranked by shared keywords)\n")
		for _, t := range targets {
			status := "not linked yet"
			if t.AlreadyLinked {
				status = "already linked"
			}
			fmt.Fprintf(&b, "- %s %q shares [%s], %s\n", t.URL, t.Title, strings.Join(t.Shared, ", "), status)
		}
	}

	b.WriteString("\nCALLS TO ACTION\n")
	if len(page.CTAs) == 0 {
		b.WriteString("none found\n")
	}
	for _, cta := range page.CTAs {
		fmt.Fprintf(&b, "- %s %q (%s)\n", cta.Type, cta.Text, cta.Location)
	}

	b.WriteString("\nReturn 5 to 10 suggestions ordered by impact.")
	return b.String()
}

func buildBusinessPrompt(site []PageSummary, additionalInfo string) string {
	data, _ := json.MarshalIndent(site, "", "  ")
	var b strings.Builder
	b.WriteString("Infer the business behind this website from its pages.\n\n")
	b.Write(data)
	if strings.TrimSpace(additionalInfo) != "" {
		fmt.Fprintf(&b, "\n\nAdditional information from the owner: %s", strings.TrimSpace(additionalInfo))
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
