package scoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

func page(path string, links ...string) *report.PageAnalysisResult {
	p := &report.PageAnalysisResult{URL: "https://example.com" + path, WordCount: 100}
	for _, l := range links {
		p.InternalLinks = append(p.InternalLinks, extract.Link{URL: "https://example.com" + l, Text: "Link to " + l})
	}
	return p
}

func TestLinkArchitectureOrphans(t *testing.T) {
	cycle := []*report.PageAnalysisResult{
		page("/", "/b"),
		page("/b", "/c"),
		page("/c", "/"),
	}
	rep := LinkArchitecture(cycle)
	assert.Empty(t, rep.OrphanPages)
	assert.Equal(t, map[string]int{
		"https://example.com/":  0,
		"https://example.com/b": 1,
		"https://example.com/c": 2,
	}, rep.NavigationDepth)
	assert.Equal(t, 2, rep.MaxDepth)

	withOrphan := append(cycle, page("/d", "/"))
	rep = LinkArchitecture(withOrphan)
	assert.Equal(t, []string{"https://example.com/d"}, rep.OrphanPages)
	assert.Equal(t, []string{"https://example.com/d"}, rep.Unreachable)
}

func TestLinkGraphNormalizesTargets(t *testing.T) {
	pages := []*report.PageAnalysisResult{
		page("/"),
		page("/b"),
	}
	pages[0].InternalLinks = []extract.Link{
		{URL: "https://www.example.com/b/"},
		{URL: "https://example.com/b#section"},
		{URL: "https://example.com/"},
		{URL: "https://example.com/not-analyzed"},
	}

	graph := BuildLinkGraph(pages)
	assert.Equal(t, []string{"https://example.com/b"}, graph["https://example.com/"].Outgoing)
	assert.Equal(t, []string{"https://example.com/"}, graph["https://example.com/b"].Incoming)
	assert.Empty(t, graph["https://example.com/"].Incoming)
}

func TestLinkArchitectureAuthority(t *testing.T) {
	pages := []*report.PageAnalysisResult{
		page("/", "/b", "/c"),
		page("/b", "/c", "/"),
		page("/c", "/"),
		page("/d", "/"),
	}
	rep := LinkArchitecture(pages)

	require.Len(t, rep.Authority, 4)
	assert.Equal(t, "https://example.com/", rep.Authority[0].URL)
	assert.Equal(t, 3, rep.Authority[0].Incoming)
	assert.InDelta(t, 2.77, rep.Authority[0].Authority, 0.001)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/c", "https://example.com/b"}, rep.Hubs)
	assert.Equal(t, 0.0, rep.EquityDistribution, "an orphan has zero authority")
	assert.Equal(t, 1.5, rep.AverageLinksPerPage)
	assert.Equal(t, 1.5, rep.LinkDensity)
}

func TestAnchorTextQuality(t *testing.T) {
	pages := []*report.PageAnalysisResult{
		{URL: "https://example.com/", InternalLinks: []extract.Link{
			{URL: "https://example.com/b", Text: "Click here"},
			{URL: "https://example.com/c", Text: "Garden tools"},
			{URL: "https://example.com/c", Text: "garden  tools"},
		}},
		{URL: "https://example.com/b", Title: "About us"},
		{URL: "https://example.com/c", Title: "Garden Tools"},
	}
	q := LinkArchitecture(pages).AnchorText

	assert.Equal(t, 3, q.Total)
	assert.Equal(t, 0.33, q.GenericRatio)
	assert.Equal(t, 0.67, q.DescriptiveRatio)
	assert.Equal(t, 0.67, q.ExactMatchRatio)
	assert.Equal(t, 0.67, q.UniquenessRatio)
	assert.InDelta(t, 48.5, q.Score, 0.11)
}

func TestLinkArchitectureEmpty(t *testing.T) {
	rep := LinkArchitecture(nil)
	assert.Zero(t, rep.Score)
	assert.NotNil(t, rep.OrphanPages)
}

func TestPerformance(t *testing.T) {
	good := &report.PageAnalysisResult{
		URL:              "https://example.com/",
		Viewport:         "width=device-width",
		WordCount:        800,
		ReadabilityScore: 70,
		Headings:         []extract.Heading{{Level: 1, Text: "Title"}, {Level: 2, Text: "Section"}},
		Images:           []extract.Image{{Src: "a.jpg", Alt: "A", HasAlt: true, Width: 400, Height: 300}},
		InternalLinks:    []extract.Link{{URL: "/a"}, {URL: "/b"}, {URL: "/c"}},
		CTAs:             []extract.CTA{{Text: "Buy now"}},
	}
	poor := &report.PageAnalysisResult{
		URL:       "https://example.com/poor",
		WordCount: 50,
		Headings:  []extract.Heading{{Level: 1, Text: "One"}, {Level: 1, Text: "Two"}, {Level: 4, Text: "Deep"}},
	}
	for i := 0; i < 25; i++ {
		poor.Images = append(poor.Images, extract.Image{Src: fmt.Sprintf("img%d.png", i)})
	}

	goodRep := Performance([]*report.PageAnalysisResult{good})
	poorRep := Performance([]*report.PageAnalysisResult{poor})

	assert.Equal(t, 100.0, goodRep.ImageOptimization)
	assert.Equal(t, 0.0, poorRep.ImageOptimization)
	assert.Equal(t, 100.0, goodRep.CriticalPathScore)
	assert.Equal(t, 40.0, poorRep.CriticalPathScore)
	assert.Equal(t, 100.0, goodRep.NavigationClarity)
	assert.Equal(t, 100.0, goodRep.MobileExperience)
	assert.Greater(t, goodRep.Score, poorRep.Score)
	assert.NotEmpty(t, poorRep.Recommendations)

	for _, rep := range []report.PerformanceReport{goodRep, poorRep} {
		assert.GreaterOrEqual(t, rep.Score, 0.0)
		assert.LessOrEqual(t, rep.Score, 100.0)
	}
	assert.Equal(t, goodRep, Performance([]*report.PageAnalysisResult{good}), "deterministic")
}

func numberedText(n int, last string) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	words[n-1] = last
	return strings.Join(words, " ")
}

func TestContentQuality(t *testing.T) {
	pages := []*report.PageAnalysisResult{
		{URL: "https://example.com/", Title: "Home | Shop", FullText: numberedText(50, "end"),
			KeywordDensity: []report.KeywordDensity{{Keyword: "shoes", Density: 6.2}}},
		{URL: "https://example.com/a", Title: "home |  shop", FullText: numberedText(50, "finish"),
			KeywordDensity: []report.KeywordDensity{{Keyword: "bags", Density: 4}}},
		{URL: "https://example.com/b", Title: "Contact", FullText: "Completely different words appear on this page only",
			KeywordDensity: []report.KeywordDensity{{Keyword: "contact", Density: 2}}},
	}
	rep := ContentQuality(pages)

	var kinds []string
	for _, d := range rep.Duplicates {
		kinds = append(kinds, d.Kind)
		assert.Equal(t, []string{"https://example.com/", "https://example.com/a"}, d.URLs)
	}
	assert.Equal(t, []string{"title", "content"}, kinds)
	assert.Equal(t, "Home | Shop", rep.Duplicates[0].Value)
	assert.GreaterOrEqual(t, rep.Duplicates[1].Similarity, NearDuplicateThreshold)

	require.Len(t, rep.Stuffing, 2)
	assert.Equal(t, "critical", rep.Stuffing[0].Severity)
	assert.Equal(t, "shoes", rep.Stuffing[0].Keyword)
	assert.Equal(t, "high", rep.Stuffing[1].Severity)

	assert.InDelta(t, 33.3, rep.DuplicationScore, 0.05)
	assert.Equal(t, 70.0, rep.StuffingScore)
}

func TestJaccard(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true, "z": true}
	assert.InDelta(t, 1.0/3, Jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(nil, nil))
}

func TestTechnical(t *testing.T) {
	pages := []*report.PageAnalysisResult{
		{Issues: []report.SeoIssue{
			{Severity: report.SeverityCritical, Title: "Missing H1"},
			{Severity: report.SeverityWarning, Title: "Title too short"},
			{Severity: report.SeverityInfo, Title: "Missing canonical"},
		}},
		{},
	}
	rep := Technical(pages)
	assert.Equal(t, 92.5, rep.Score)
	assert.Equal(t, 1, rep.Critical)
	assert.Equal(t, 1, rep.Warnings)
	assert.Equal(t, 1, rep.Info)
	assert.Equal(t, 1, rep.ByTitle["Missing H1"])

	var many []report.SeoIssue
	for i := 0; i < 12; i++ {
		many = append(many, report.SeoIssue{Severity: report.SeverityCritical})
	}
	assert.Equal(t, 0.0, Technical([]*report.PageAnalysisResult{{Issues: many}}).Score)
}

func TestEffectiveness(t *testing.T) {
	assert.Equal(t, 100.0, Effectiveness(100, 100, 100, 100))
	assert.Equal(t, 55.0, Effectiveness(80, 60, 40, 20))
}

func TestEnhanced(t *testing.T) {
	pages := []*report.PageAnalysisResult{page("/", "/b"), page("/b", "/")}
	out := Enhanced(pages)
	require.NotNil(t, out)
	assert.Equal(t, Effectiveness(out.Technical.Score, out.ContentQuality.Score,
		out.Performance.Score, out.LinkArchitecture.Score), out.SEOEffectiveness)
	assert.Equal(t, LinkArchitecture(pages), out.LinkArchitecture)
}
