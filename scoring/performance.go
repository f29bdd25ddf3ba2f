package scoring

import (
	"github.com/seo-optimizer/siteanalyzer/report"
)

const (
	defaultImageKB = 100.0
	baseDocumentKB = 30.0
)

type pagePerformance struct {
	imageOpt, weightKB, resource         float64
	criticalPath, renderRisk, loading    float64
	access, navClarity, readable, mobile float64
	ux, score                            float64
}

// Performance estimates resource, loading and UX health from the extracted
// page structure. No network requests are made.
func Performance(pages []*report.PageAnalysisResult) report.PerformanceReport {
	var rep report.PerformanceReport
	if len(pages) == 0 {
		return rep
	}

	var sum pagePerformance
	for _, p := range pages {
		pp := pagePerf(p)
		sum.imageOpt += pp.imageOpt
		sum.weightKB += pp.weightKB
		sum.resource += pp.resource
		sum.criticalPath += pp.criticalPath
		sum.renderRisk += pp.renderRisk
		sum.loading += pp.loading
		sum.access += pp.access
		sum.navClarity += pp.navClarity
		sum.readable += pp.readable
		sum.mobile += pp.mobile
		sum.ux += pp.ux
		sum.score += pp.score
	}

	n := float64(len(pages))
	rep.ImageOptimization = round1(sum.imageOpt / n)
	rep.EstimatedPageWeight = round1(sum.weightKB / n)
	rep.ResourceScore = round1(sum.resource / n)
	rep.CriticalPathScore = round1(sum.criticalPath / n)
	rep.RenderBlockingRisk = round1(sum.renderRisk / n)
	rep.LoadingScore = round1(sum.loading / n)
	rep.Accessibility = round1(sum.access / n)
	rep.NavigationClarity = round1(sum.navClarity / n)
	rep.Readability = round1(sum.readable / n)
	rep.MobileExperience = round1(sum.mobile / n)
	rep.UXScore = round1(sum.ux / n)
	rep.Score = round1(sum.score / n)
	rep.Recommendations = performanceRecommendations(rep)
	return rep
}

func pagePerf(p *report.PageAnalysisResult) pagePerformance {
	var pp pagePerformance

	// Resources
	withAlt, withDims := 0, 0
	imageKB := 0.0
	for _, img := range p.Images {
		if img.HasAlt && img.Alt != "" {
			withAlt++
		}
		if img.Width > 0 && img.Height > 0 {
			withDims++
			// roughly half a byte per pixel once compressed
			imageKB += float64(img.Width*img.Height) * 0.5 / 1024
		} else {
			imageKB += defaultImageKB
		}
	}
	altCoverage := 1.0
	if len(p.Images) > 0 {
		altCoverage = float64(withAlt) / float64(len(p.Images))
		pp.imageOpt = (altCoverage*0.5 + float64(withDims)/float64(len(p.Images))*0.5) * 100
	} else {
		pp.imageOpt = 100
	}

	documentKB := float64(p.PageSize) / 1024
	if p.PageSize == 0 {
		documentKB = baseDocumentKB + float64(p.WordCount)*6/1024 + float64(len(p.Headings))*0.1
	}
	pp.weightKB = documentKB + imageKB

	weightScore := 100.0
	switch {
	case pp.weightKB > 5120: // > 5MB
		weightScore = 0
	case pp.weightKB > 2048: // > 2MB
		weightScore = 25
	case pp.weightKB > 1024: // > 1MB
		weightScore = 50
	case pp.weightKB > 500: // > 500KB
		weightScore = 75
	}
	pp.resource = pp.imageOpt*0.6 + weightScore*0.4

	// Loading
	pp.criticalPath = 100
	if p.H1Count() != 1 {
		pp.criticalPath -= 30
	}
	switch {
	case len(p.Images) > 20:
		pp.criticalPath -= 30
	case len(p.Images) > 10:
		pp.criticalPath -= 15
	}
	pp.renderRisk = clamp(float64(p.WordCount)/100 + float64(len(p.Images))*4)
	pp.loading = pp.criticalPath*0.6 + (100-pp.renderRisk)*0.4

	// UX
	pp.access = altCoverage*60 + headingStructure(p)*40
	pp.navClarity = float64(min(len(p.InternalLinks), 3)) * 20
	if len(p.CTAs) > 0 {
		pp.navClarity += 40
	}
	pp.readable = clamp(p.ReadabilityScore)
	if p.Viewport != "" {
		pp.mobile += 50
	}
	if p.WordCount >= 300 && p.WordCount <= 3000 {
		pp.mobile += 25
	}
	if len(p.Headings) >= 2 {
		pp.mobile += 25
	}
	pp.ux = (pp.access + pp.navClarity + pp.readable + pp.mobile) / 4

	pp.score = pp.resource*0.35 + pp.loading*0.35 + pp.ux*0.30
	return pp
}

// headingStructure is 1 for a single H1 without skipped levels, 0.5 for any
// other non-empty outline and 0 without headings.
func headingStructure(p *report.PageAnalysisResult) float64 {
	if len(p.Headings) == 0 {
		return 0
	}
	if p.H1Count() != 1 {
		return 0.5
	}
	prev := 0
	for _, h := range p.Headings {
		if prev > 0 && h.Level > prev+1 {
			return 0.5
		}
		prev = h.Level
	}
	return 1
}

func performanceRecommendations(rep report.PerformanceReport) []string {
	var recs []string
	if rep.ImageOptimization < 70 {
		recs = append(recs, "Add alt text and explicit width/height attributes to images.")
	}
	if rep.EstimatedPageWeight > 1024 {
		recs = append(recs, "Reduce page weight by compressing images and deferring non-critical resources.")
	}
	if rep.CriticalPathScore < 70 {
		recs = append(recs, "Use exactly one H1 per page and limit above-the-fold images.")
	}
	if rep.NavigationClarity < 60 {
		recs = append(recs, "Give every page clear internal navigation and a call to action.")
	}
	if rep.MobileExperience < 50 {
		recs = append(recs, "Add a viewport meta tag and structure content with subheadings for mobile readers.")
	}
	return recs
}
