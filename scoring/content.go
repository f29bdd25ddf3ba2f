package scoring

import (
	"sort"
	"strings"

	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	NearDuplicateThreshold = 0.8
	StuffingCritical       = 5.0
	StuffingHigh           = 3.0
	shingleSize            = 3
)

// ContentQuality looks for duplicated titles, descriptions and content
// across pages and for keyword stuffing.
func ContentQuality(pages []*report.PageAnalysisResult) report.ContentQualityReport {
	rep := report.ContentQualityReport{
		Duplicates: []report.DuplicateGroup{},
		Stuffing:   []report.KeywordStuffing{},
	}
	if len(pages) == 0 {
		return rep
	}

	rep.Duplicates = append(rep.Duplicates, exactDuplicates("title", pages, func(p *report.PageAnalysisResult) string { return p.Title })...)
	rep.Duplicates = append(rep.Duplicates, exactDuplicates("description", pages, func(p *report.PageAnalysisResult) string { return p.MetaDescription })...)
	rep.Duplicates = append(rep.Duplicates, nearDuplicates(pages)...)

	for _, p := range pages {
		if len(p.KeywordDensity) == 0 {
			continue
		}
		top := p.KeywordDensity[0]
		for _, kd := range p.KeywordDensity[1:] {
			if kd.Density > top.Density {
				top = kd
			}
		}
		var severity string
		switch {
		case top.Density > StuffingCritical:
			severity = "critical"
		case top.Density >= StuffingHigh:
			severity = "high"
		default:
			continue
		}
		rep.Stuffing = append(rep.Stuffing, report.KeywordStuffing{
			URL: p.URL, Keyword: top.Keyword, Density: top.Density, Severity: severity,
		})
	}

	var words, depth, readable float64
	for _, p := range pages {
		words += float64(p.WordCount)
		depth += p.ContentDepth
		readable += p.ReadabilityScore
	}
	n := float64(len(pages))
	rep.AverageWordCount = round1(words / n)
	rep.AverageDepth = round1(depth / n)
	rep.AverageReadable = round1(readable / n)

	affected := make(map[string]bool)
	for _, d := range rep.Duplicates {
		for _, u := range d.URLs {
			affected[u] = true
		}
	}
	rep.DuplicationScore = round1(100 - float64(len(affected))/n*100)

	stuffing := 100.0
	for _, s := range rep.Stuffing {
		if s.Severity == "critical" {
			stuffing -= 20
		} else {
			stuffing -= 10
		}
	}
	rep.StuffingScore = clamp(stuffing)

	rep.Score = round1(rep.DuplicationScore*0.35 +
		rep.StuffingScore*0.25 +
		clamp(rep.AverageDepth)*0.20 +
		clamp(rep.AverageReadable)*0.20)
	rep.Recommendations = contentRecommendations(rep)
	return rep
}

func exactDuplicates(kind string, pages []*report.PageAnalysisResult, value func(*report.PageAnalysisResult) string) []report.DuplicateGroup {
	groups := make(map[string][]string)
	raw := make(map[string]string)
	var order []string
	for _, p := range pages {
		v := normalizeText(value(p))
		if v == "" {
			continue
		}
		if _, ok := groups[v]; !ok {
			order = append(order, v)
			raw[v] = strings.TrimSpace(value(p))
		}
		groups[v] = append(groups[v], p.URL)
	}

	var out []report.DuplicateGroup
	for _, v := range order {
		if urls := groups[v]; len(urls) > 1 {
			out = append(out, report.DuplicateGroup{Kind: kind, Value: raw[v], URLs: urls, Similarity: 1})
		}
	}
	return out
}

// nearDuplicates compares the word shingles of every pair of pages.
func nearDuplicates(pages []*report.PageAnalysisResult) []report.DuplicateGroup {
	shingles := make([]map[string]bool, len(pages))
	for i, p := range pages {
		shingles[i] = shingleSet(p)
	}

	var out []report.DuplicateGroup
	for i := 0; i < len(pages); i++ {
		if len(shingles[i]) == 0 {
			continue
		}
		for j := i + 1; j < len(pages); j++ {
			if len(shingles[j]) == 0 {
				continue
			}
			if sim := Jaccard(shingles[i], shingles[j]); sim >= NearDuplicateThreshold {
				out = append(out, report.DuplicateGroup{
					Kind:       "content",
					URLs:       []string{pages[i].URL, pages[j].URL},
					Similarity: round2(sim),
				})
			}
		}
	}
	return out
}

func shingleSet(p *report.PageAnalysisResult) map[string]bool {
	text := p.FullText
	if text == "" {
		text = strings.Join(p.Paragraphs, " ")
	}
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool)
	for i := 0; i+shingleSize <= len(words); i++ {
		set[strings.Join(words[i:i+shingleSize], " ")] = true
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func contentRecommendations(rep report.ContentQualityReport) []string {
	kinds := make(map[string]bool)
	for _, d := range rep.Duplicates {
		kinds[d.Kind] = true
	}
	sorted := make([]string, 0, len(kinds))
	for k := range kinds {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var recs []string
	for _, k := range sorted {
		switch k {
		case "title":
			recs = append(recs, "Give every page a unique title.")
		case "description":
			recs = append(recs, "Write a unique meta description for every page.")
		case "content":
			recs = append(recs, "Consolidate or rewrite pages with near-identical content.")
		}
	}
	if len(rep.Stuffing) > 0 {
		recs = append(recs, "Reduce repetition of over-used keywords and use natural variations.")
	}
	if rep.AverageWordCount < 300 {
		recs = append(recs, "Expand thin pages with more in-depth content.")
	}
	return recs
}
