// Package stats keeps monthly counters of analysis runs on disk.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const monthLayout = "2006-01"

// Delta is one increment of the run counters.
type Delta struct {
	RunsStarted         int
	RunsCompleted       int
	RunsCancelled       int
	RunsFailed          int
	PagesAnalyzed       int
	AICalls             int
	SuggestionCacheHits int
	SuggestionCacheMiss int
	CreditsUsed         int
	CreditsRefunded     int
}

// MonthlyStats represents statistics for a specific month
type MonthlyStats struct {
	RunsStarted         int       `json:"runs_started"`
	RunsCompleted       int       `json:"runs_completed"`
	RunsCancelled       int       `json:"runs_cancelled"`
	RunsFailed          int       `json:"runs_failed"`
	PagesAnalyzed       int       `json:"pages_analyzed"`
	AICalls             int       `json:"ai_calls"`
	SuggestionCacheHits int       `json:"suggestion_hits"`
	SuggestionCacheMiss int       `json:"suggestion_misses"`
	CreditsUsed         int       `json:"credits_used"`
	CreditsRefunded     int       `json:"credits_refunded"`
	LastUpdated         time.Time `json:"last_updated"`
}

func (m *MonthlyStats) add(d Delta) {
	m.RunsStarted += d.RunsStarted
	m.RunsCompleted += d.RunsCompleted
	m.RunsCancelled += d.RunsCancelled
	m.RunsFailed += d.RunsFailed
	m.PagesAnalyzed += d.PagesAnalyzed
	m.AICalls += d.AICalls
	m.SuggestionCacheHits += d.SuggestionCacheHits
	m.SuggestionCacheMiss += d.SuggestionCacheMiss
	m.CreditsUsed += d.CreditsUsed
	m.CreditsRefunded += d.CreditsRefunded
}

// CacheHitRate returns the share of suggestion lookups served from cache,
// as a percentage.
func (m MonthlyStats) CacheHitRate() float64 {
	total := m.SuggestionCacheHits + m.SuggestionCacheMiss
	if total == 0 {
		return 0
	}
	return float64(m.SuggestionCacheHits) / float64(total) * 100
}

// Storage handles persistent storage of statistics
type Storage struct {
	mutex       sync.RWMutex
	writeMu     sync.Mutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	stop        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewStorage creates a new statistics storage instance
func NewStorage(dataDir string, log logrus.FieldLogger) (*Storage, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		writeBuffer: make(chan struct{}, 1), // Buffer for write requests
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		log:         log,
		now:         time.Now,
	}

	// Load existing stats if file exists
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	// Start background writer
	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// Flush writes statistics to file, replacing it atomically.
func (s *Storage) Flush() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func (s *Storage) flushLogged() {
	if err := s.Flush(); err != nil {
		s.log.WithError(err).Warn("Could not persist run statistics")
	}
}

// backgroundWriter handles periodic writes to disk
func (s *Storage) backgroundWriter() {
	defer close(s.done)
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
			s.flushLogged()
		case <-ticker.C:
			s.flushLogged()
		case <-s.stop:
			return
		}
	}
}

// Close stops the background writer and writes the final state.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return s.Flush()
}

func (s *Storage) currentMonth() string {
	return s.now().Format(monthLayout)
}

// requestWrite signals that a write to disk is needed
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// Record adds d to the current month.
func (s *Storage) Record(d Delta) {
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}
	stats.add(d)
	stats.LastUpdated = s.now()

	// Request a write if enough time has passed
	if s.now().Sub(s.lastWrite) > time.Minute {
		s.requestWrite()
		s.lastWrite = s.now()
	}
}

// GetCurrentStats returns statistics for the current month
func (s *Storage) GetCurrentStats() MonthlyStats {
	stats, _ := s.GetMonthlyStats(s.currentMonth())
	return stats
}

// Cleanup removes statistics older than retainMonths, counting the current
// month. It returns the number of months removed.
func (s *Storage) Cleanup(retainMonths int) int {
	if retainMonths < 1 {
		retainMonths = 1
	}
	cutoff := s.now().AddDate(0, -(retainMonths - 1), 0).Format(monthLayout)

	s.mutex.Lock()
	removed := 0
	for key := range s.stats {
		// YYYY-MM keys order lexically
		if key < cutoff {
			delete(s.stats, key)
			removed++
		}
	}
	s.mutex.Unlock()

	if removed > 0 {
		s.requestWrite()
		s.log.WithFields(logrus.Fields{"removed": removed, "oldestKept": cutoff}).Debug("Pruned run statistics")
	}
	return removed
}

// GetMonthlyStats returns statistics for a specific month
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns a sorted list of all months that have statistics
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}

	// Sort months in descending order (newest first)
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}
