package report

// LinkNode is one vertex of the internal link graph.
type LinkNode struct {
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// LinkGraph maps page URLs to their internal edges.
type LinkGraph map[string]*LinkNode

// AnchorTextQuality summarises internal anchor texts.
type AnchorTextQuality struct {
	Total            int     `json:"total"`
	DescriptiveRatio float64 `json:"descriptiveRatio"`
	GenericRatio     float64 `json:"genericRatio"`
	ExactMatchRatio  float64 `json:"exactMatchRatio"`
	UniquenessRatio  float64 `json:"uniquenessRatio"`
	Score            float64 `json:"score"`
}

// PageAuthority is the simplified incoming-link importance of a page.
type PageAuthority struct {
	URL       string  `json:"url"`
	Incoming  int     `json:"incoming"`
	Authority float64 `json:"authority"`
}

// LinkArchitectureReport is the output of the link architecture analyzer.
type LinkArchitectureReport struct {
	AverageLinksPerPage float64           `json:"averageLinksPerPage"`
	LinkDensity         float64           `json:"linkDensity"`
	OrphanPages         []string          `json:"orphanPages"`
	AnchorText          AnchorTextQuality `json:"anchorText"`
	NavigationDepth     map[string]int    `json:"navigationDepth"`
	MaxDepth            int               `json:"maxDepth"`
	Unreachable         []string          `json:"unreachable,omitempty"`
	Authority           []PageAuthority   `json:"authority"`
	Hubs                []string          `json:"hubs"`
	EquityDistribution  float64           `json:"equityDistribution"`
	DistributionScore   float64           `json:"distributionScore"`
	NavigationScore     float64           `json:"navigationScore"`
	Score               float64           `json:"score"`
	Recommendations     []string          `json:"recommendations,omitempty"`
}

// PerformanceReport is the output of the performance heuristics analyzer.
type PerformanceReport struct {
	ImageOptimization   float64  `json:"imageOptimization"`
	EstimatedPageWeight float64  `json:"estimatedPageWeightKb"`
	ResourceScore       float64  `json:"resourceScore"`
	CriticalPathScore   float64  `json:"criticalPathScore"`
	RenderBlockingRisk  float64  `json:"renderBlockingRisk"`
	LoadingScore        float64  `json:"loadingScore"`
	Accessibility       float64  `json:"accessibility"`
	NavigationClarity   float64  `json:"navigationClarity"`
	Readability         float64  `json:"readability"`
	MobileExperience    float64  `json:"mobileExperience"`
	UXScore             float64  `json:"uxScore"`
	Score               float64  `json:"score"`
	Recommendations     []string `json:"recommendations,omitempty"`
}

// DuplicateGroup lists pages sharing the same (or near-same) value.
type DuplicateGroup struct {
	Kind       string   `json:"kind"`
	Value      string   `json:"value,omitempty"`
	URLs       []string `json:"urls"`
	Similarity float64  `json:"similarity,omitempty"`
}

// KeywordStuffing flags a page whose top keyword is over-used.
type KeywordStuffing struct {
	URL      string  `json:"url"`
	Keyword  string  `json:"keyword"`
	Density  float64 `json:"density"`
	Severity string  `json:"severity"`
}

// ContentQualityReport is the output of the cross-page content analyzer.
type ContentQualityReport struct {
	Duplicates       []DuplicateGroup  `json:"duplicates"`
	Stuffing         []KeywordStuffing `json:"keywordStuffing"`
	AverageWordCount float64           `json:"averageWordCount"`
	AverageDepth     float64           `json:"averageDepth"`
	AverageReadable  float64           `json:"averageReadability"`
	DuplicationScore float64           `json:"duplicationScore"`
	StuffingScore    float64           `json:"stuffingScore"`
	Score            float64           `json:"score"`
	Recommendations  []string          `json:"recommendations,omitempty"`
}

// TechnicalReport aggregates the rule-based issues of all pages.
type TechnicalReport struct {
	Critical int            `json:"critical"`
	Warnings int            `json:"warnings"`
	Info     int            `json:"info"`
	ByTitle  map[string]int `json:"byTitle"`
	Score    float64        `json:"score"`
}

// EnhancedInsights bundles the specialised analyzers.
type EnhancedInsights struct {
	Technical        TechnicalReport        `json:"technical"`
	ContentQuality   ContentQualityReport   `json:"contentQuality"`
	LinkArchitecture LinkArchitectureReport `json:"linkArchitecture"`
	Performance      PerformanceReport      `json:"performance"`
	SEOEffectiveness float64                `json:"seoEffectiveness"`
}
