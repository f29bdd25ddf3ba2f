package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("domain", "example.com").Info("hello")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "example.com", line["domain"])
	assert.Equal(t, "hello", line["msg"])

	_, err = New("loud", "text")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "info", "json")
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinLogger(log))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/missing", line["path"])
	assert.EqualValues(t, 404, line["status"])
	assert.Equal(t, "warning", line["level"])
}

func TestStatistics(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := NewStatistics(dir, true, nil)
	s.now = func() time.Time { return now }

	s.TrackVisitor("1.1.1.1")
	s.TrackVisitor("2.2.2.2")
	s.TrackAnalysis("https://www.Example.com/shop", 100, false)
	s.TrackAnalysis("example.com", 300, true)
	s.TrackAnalysis("other.org", 200, false)
	s.TrackAnalysis("localhost:8080", 0, false)

	assert.Equal(t, 25.0, s.ErrorRate())
	assert.Equal(t, []DomainCount{{"example.com", 2}, {"other.org", 1}}, s.TopDomains(5))

	snap := s.Snapshot()
	assert.Equal(t, 2, snap["uniqueVisitors24h"])
	assert.Equal(t, 4, snap["totalRequests"])
	assert.Equal(t, 150.0, snap["averageLoadTime"])
	assert.Contains(t, snap, "popularDomains")

	require.NoError(t, s.Save())

	reloaded := NewStatistics(dir, false, nil)
	assert.Equal(t, 4, reloaded.Requests())
	assert.NotContains(t, reloaded.Snapshot(), "popularDomains")
}
