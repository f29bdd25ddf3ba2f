// Package scoring holds the cross-page analyzers. Every function here is
// pure and deterministic over the analyzed page set.
package scoring

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/seo-optimizer/siteanalyzer/extract"
	"github.com/seo-optimizer/siteanalyzer/report"
)

const maxHubs = 5

// BuildLinkGraph connects the analyzed pages through their internal links.
// Links to pages outside the set and self links are ignored.
func BuildLinkGraph(pages []*report.PageAnalysisResult) report.LinkGraph {
	graph := make(report.LinkGraph, len(pages))
	byKey := make(map[string]string, len(pages))
	for _, p := range pages {
		graph[p.URL] = &report.LinkNode{Incoming: []string{}, Outgoing: []string{}}
		byKey[pageKey(p.URL)] = p.URL
	}

	for _, p := range pages {
		seen := make(map[string]bool)
		for _, l := range p.InternalLinks {
			target, ok := byKey[pageKey(l.URL)]
			if !ok || target == p.URL || seen[target] {
				continue
			}
			seen[target] = true
			graph[p.URL].Outgoing = append(graph[p.URL].Outgoing, target)
			graph[target].Incoming = append(graph[target].Incoming, p.URL)
		}
	}
	return graph
}

// LinkArchitecture analyzes how the pages link to each other.
func LinkArchitecture(pages []*report.PageAnalysisResult) report.LinkArchitectureReport {
	rep := report.LinkArchitectureReport{
		OrphanPages:     []string{},
		NavigationDepth: map[string]int{},
		Authority:       []report.PageAuthority{},
		Hubs:            []string{},
	}
	if len(pages) == 0 {
		return rep
	}

	graph := BuildLinkGraph(pages)

	totalLinks, totalWords := 0, 0
	for _, p := range pages {
		totalLinks += len(p.InternalLinks)
		totalWords += p.WordCount
		if len(graph[p.URL].Incoming) == 0 {
			rep.OrphanPages = append(rep.OrphanPages, p.URL)
		}
	}
	rep.AverageLinksPerPage = round1(float64(totalLinks) / float64(len(pages)))
	if totalWords > 0 {
		rep.LinkDensity = round2(float64(totalLinks) / float64(totalWords) * 100)
	}

	rep.AnchorText = anchorQuality(pages)
	navigation(pages, graph, &rep)
	authority(pages, graph, &rep)

	rep.DistributionScore = distributionScore(rep.AverageLinksPerPage, len(rep.OrphanPages), len(pages))
	rep.Score = round1(rep.DistributionScore*0.30 +
		rep.AnchorText.Score*0.25 +
		rep.NavigationScore*0.25 +
		rep.EquityDistribution*100*0.20)
	rep.Recommendations = linkRecommendations(rep)
	return rep
}

func anchorQuality(pages []*report.PageAnalysisResult) report.AnchorTextQuality {
	titles := make(map[string]string, len(pages))
	for _, p := range pages {
		titles[pageKey(p.URL)] = normalizeText(p.Title)
	}

	var q report.AnchorTextQuality
	var descriptive, generic, exact int
	unique := make(map[string]bool)
	for _, p := range pages {
		for _, l := range p.InternalLinks {
			text := normalizeText(l.Text)
			q.Total++
			unique[text] = true
			switch {
			case extract.IsGenericAnchor(text):
				generic++
			case len(strings.Fields(text)) >= 2:
				descriptive++
			}
			if title := titles[pageKey(l.URL)]; title != "" && text == title {
				exact++
			}
		}
	}
	if q.Total == 0 {
		return q
	}

	total := float64(q.Total)
	q.DescriptiveRatio = round2(float64(descriptive) / total)
	q.GenericRatio = round2(float64(generic) / total)
	q.ExactMatchRatio = round2(float64(exact) / total)
	q.UniquenessRatio = round2(float64(len(unique)) / total)

	score := (q.DescriptiveRatio*0.5 + q.UniquenessRatio*0.3 + (1-q.GenericRatio)*0.2) * 100
	// Over-optimised anchors
	if q.ExactMatchRatio > 0.3 {
		score -= (q.ExactMatchRatio - 0.3) * 50
	}
	q.Score = round1(clamp(score))
	return q
}

// navigation runs a breadth-first traversal from the homepage.
func navigation(pages []*report.PageAnalysisResult, graph report.LinkGraph, rep *report.LinkArchitectureReport) {
	home := homepage(pages)
	depth := map[string]int{home: 0}
	queue := []string{home}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range graph[current].Outgoing {
			if _, ok := depth[next]; ok {
				continue
			}
			depth[next] = depth[current] + 1
			rep.MaxDepth = max(rep.MaxDepth, depth[next])
			queue = append(queue, next)
		}
	}
	rep.NavigationDepth = depth

	for _, p := range pages {
		if _, ok := depth[p.URL]; !ok {
			rep.Unreachable = append(rep.Unreachable, p.URL)
		}
	}

	score := 100.0
	if rep.MaxDepth > 3 {
		score -= float64(rep.MaxDepth-3) * 15 // Deep pages
	}
	score -= float64(len(rep.Unreachable)) / float64(len(pages)) * 50
	rep.NavigationScore = round1(clamp(score))
}

func authority(pages []*report.PageAnalysisResult, graph report.LinkGraph, rep *report.LinkArchitectureReport) {
	minA, maxA := math.Inf(1), 0.0
	for _, p := range pages {
		in := len(graph[p.URL].Incoming)
		a := round2(math.Log(float64(in)+1) * 2)
		rep.Authority = append(rep.Authority, report.PageAuthority{URL: p.URL, Incoming: in, Authority: a})
		minA = math.Min(minA, a)
		maxA = math.Max(maxA, a)
	}

	sort.SliceStable(rep.Authority, func(i, j int) bool {
		if rep.Authority[i].Authority != rep.Authority[j].Authority {
			return rep.Authority[i].Authority > rep.Authority[j].Authority
		}
		return rep.Authority[i].URL < rep.Authority[j].URL
	})
	for _, a := range rep.Authority {
		if len(rep.Hubs) == maxHubs || a.Authority == 0 {
			break
		}
		rep.Hubs = append(rep.Hubs, a.URL)
	}

	if maxA > 0 {
		rep.EquityDistribution = round2(1 - (maxA-minA)/maxA)
	}
}

func distributionScore(avgLinks float64, orphans, pages int) float64 {
	score := 100.0
	switch {
	case avgLinks < 1:
		score -= 60 // Critical issue
	case avgLinks < 3:
		score -= 35 // Major issue
	case avgLinks < 5:
		score -= 15 // Moderate issue
	case avgLinks > 100:
		score -= 25 // Too many links
	}
	score -= float64(orphans) / float64(pages) * 40
	return round1(clamp(score))
}

func linkRecommendations(rep report.LinkArchitectureReport) []string {
	var recs []string
	if len(rep.OrphanPages) > 0 {
		recs = append(recs, "Link to orphan pages from related content so search engines and visitors can find them.")
	}
	if rep.AnchorText.Total > 0 && rep.AnchorText.GenericRatio > 0.2 {
		recs = append(recs, "Replace generic anchor texts like \"click here\" with descriptive ones.")
	}
	if rep.AnchorText.ExactMatchRatio > 0.3 {
		recs = append(recs, "Vary internal anchor texts instead of repeating exact page titles.")
	}
	if rep.MaxDepth > 3 {
		recs = append(recs, "Keep important pages within three clicks of the homepage.")
	}
	if len(rep.Unreachable) > 0 {
		recs = append(recs, "Some pages cannot be reached from the homepage through internal links.")
	}
	if rep.AverageLinksPerPage < 3 {
		recs = append(recs, "Add more contextual internal links between related pages.")
	}
	return recs
}

// homepage returns the page with a root path, or the first page.
func homepage(pages []*report.PageAnalysisResult) string {
	for _, p := range pages {
		if u, err := url.Parse(p.URL); err == nil && strings.Trim(u.Path, "/") == "" {
			return p.URL
		}
	}
	return pages[0].URL
}

// pageKey identifies a page regardless of scheme, www prefix, trailing
// slash and fragment.
func pageKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	key := host + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
