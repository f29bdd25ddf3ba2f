package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seo-optimizer/siteanalyzer/logging"
)

// DomainKey is the gin context key under which the analyze handler stores
// the requested domain.
const DomainKey = "analysisDomain"

const saveEvery = 100

// Stats tracks visitors and analysis requests.
func Stats(stats *logging.Statistics, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Track unique visitor
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		// Only track analysis requests
		if c.Request.Method != http.MethodPost || c.FullPath() != "/api/analyze" {
			return
		}
		loadTime := float64(time.Since(start).Milliseconds())
		failed := c.Writer.Status() >= http.StatusInternalServerError || len(c.Errors) > 0
		stats.TrackAnalysis(c.GetString(DomainKey), loadTime, failed)

		// Periodically save statistics
		if stats.Requests()%saveEvery == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					log.WithError(err).Warn("Could not save statistics")
				}
			}()
		}
	}
}
