package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Statistics represents the collected request statistics
type Statistics struct {
	UniqueVisitors   map[string]time.Time `json:"uniqueVisitors"`   // IP -> Last Visit Time
	AnalysisRequests int                  `json:"analysisRequests"` // Total number of analysis requests
	ErrorCount       int                  `json:"errorCount"`       // Number of failed analysis requests
	PopularDomains   map[string]int       `json:"popularDomains"`   // Domain -> Count
	AverageLoadTime  float64              `json:"averageLoadTime"`  // Average analysis time in milliseconds
	TotalLoadTime    float64              `json:"totalLoadTime"`
	RequestCount     int                  `json:"requestCount"`
	LastPersisted    time.Time            `json:"lastPersisted"`

	mutex    sync.RWMutex
	writeMu  sync.Mutex
	filePath string
	devMode  bool
	now      func() time.Time
}

// DomainCount is a domain with its number of analysis requests.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// NewStatistics creates the statistics and loads any existing file from
// dataDir. devMode exposes popular domains through Snapshot.
func NewStatistics(dataDir string, devMode bool, log logrus.FieldLogger) *Statistics {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Statistics{
		UniqueVisitors: make(map[string]time.Time),
		PopularDomains: make(map[string]int),
		LastPersisted:  time.Now(),
		filePath:       filepath.Join(dataDir, "statistics.json"),
		devMode:        devMode,
		now:            time.Now,
	}

	// Try to load existing statistics
	if err := s.Load(); err != nil {
		log.WithError(err).Warn("Could not load existing statistics")
	}
	return s
}

// TrackVisitor records a unique visitor
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.UniqueVisitors[ip] = s.now()
}

// cleanDomain reduces what the client asked to analyze to a bare host.
// Local and API hosts are not tracked.
func cleanDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if d == "" || strings.Contains(d, "localhost") || strings.HasPrefix(d, "127.0.0.1") {
		return ""
	}
	return d
}

// TrackAnalysis records an analysis request
func (s *Statistics) TrackAnalysis(domain string, loadTime float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.AnalysisRequests++

	if cleaned := cleanDomain(domain); cleaned != "" {
		s.PopularDomains[cleaned]++
	}

	if hasError {
		s.ErrorCount++
	}

	// Update average load time
	s.TotalLoadTime += loadTime
	s.RequestCount++
	s.AverageLoadTime = s.TotalLoadTime / float64(s.RequestCount)
}

// uniqueVisitors24h must be called with the lock held.
func (s *Statistics) uniqueVisitors24h() int {
	count := 0
	cutoff := s.now().Add(-24 * time.Hour)
	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}
	return count
}

// TopDomains returns the n most analyzed domains, most popular first.
func (s *Statistics) TopDomains(n int) []DomainCount {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.topDomains(n)
}

func (s *Statistics) topDomains(n int) []DomainCount {
	out := make([]DomainCount, 0, len(s.PopularDomains))
	for d, c := range s.PopularDomains {
		out = append(out, DomainCount{Domain: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ErrorRate returns the error rate as a percentage
func (s *Statistics) ErrorRate() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.errorRate()
}

func (s *Statistics) errorRate() float64 {
	if s.AnalysisRequests == 0 {
		return 0
	}
	return (float64(s.ErrorCount) / float64(s.AnalysisRequests)) * 100
}

// Save persists the statistics, writing a temporary file first.
func (s *Statistics) Save() error {
	s.mutex.Lock()
	s.LastPersisted = s.now()
	data, err := json.Marshal(s)
	s.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("could not encode statistics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("could not create statistics directory: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("could not write statistics file: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("could not replace statistics file: %w", err)
	}
	return nil
}

// Load reads the statistics from the file
func (s *Statistics) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if file doesn't exist yet
		}
		return fmt.Errorf("could not open statistics file: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("could not decode statistics: %w", err)
	}
	if s.UniqueVisitors == nil {
		s.UniqueVisitors = make(map[string]time.Time)
	}
	if s.PopularDomains == nil {
		s.PopularDomains = make(map[string]int)
	}
	return nil
}

// Snapshot returns the public view of the statistics. Popular domains are
// only included in development mode.
func (s *Statistics) Snapshot() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := map[string]interface{}{
		"uniqueVisitors24h": s.uniqueVisitors24h(),
		"totalRequests":     s.AnalysisRequests,
		"errorRate":         s.errorRate(),
		"averageLoadTime":   s.AverageLoadTime,
	}
	if s.devMode {
		out["popularDomains"] = s.topDomains(5)
	}
	return out
}

// Requests returns the number of analysis requests seen.
func (s *Statistics) Requests() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.AnalysisRequests
}
