package scoring

import (
	"sync"

	"github.com/seo-optimizer/siteanalyzer/report"
)

// Issue weights for the technical score.
const (
	criticalPenalty = 10
	warningPenalty  = 4
	infoPenalty     = 1
)

// Technical scores each page at 100 minus its weighted issues and averages
// the result over the site.
func Technical(pages []*report.PageAnalysisResult) report.TechnicalReport {
	rep := report.TechnicalReport{ByTitle: map[string]int{}}
	if len(pages) == 0 {
		return rep
	}

	total := 0.0
	for _, p := range pages {
		score := 100
		for _, issue := range p.Issues {
			rep.ByTitle[issue.Title]++
			switch issue.Severity {
			case report.SeverityCritical:
				rep.Critical++
				score -= criticalPenalty
			case report.SeverityWarning:
				rep.Warnings++
				score -= warningPenalty
			case report.SeverityInfo:
				rep.Info++
				score -= infoPenalty
			}
		}
		total += float64(max(score, 0))
	}
	rep.Score = round1(total / float64(len(pages)))
	return rep
}

// Effectiveness blends the four analyzer scores into the overall SEO
// effectiveness score.
func Effectiveness(technical, content, performance, links float64) float64 {
	weights := map[string]float64{
		"technical":   0.30,
		"content":     0.30,
		"performance": 0.25,
		"links":       0.15,
	}

	score := 0.0
	score += technical * weights["technical"]
	score += content * weights["content"]
	score += performance * weights["performance"]
	score += links * weights["links"]
	return round1(score)
}

// Enhanced runs all analyzers concurrently.
func Enhanced(pages []*report.PageAnalysisResult) *report.EnhancedInsights {
	var out report.EnhancedInsights
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { out.Technical = Technical(pages) })
	run(func() { out.ContentQuality = ContentQuality(pages) })
	run(func() { out.LinkArchitecture = LinkArchitecture(pages) })
	run(func() { out.Performance = Performance(pages) })
	wg.Wait()

	out.SEOEffectiveness = Effectiveness(out.Technical.Score, out.ContentQuality.Score,
		out.Performance.Score, out.LinkArchitecture.Score)
	return &out
}
