package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/jobboard/pkg/metrics"
)

// Metrics records request latency per route template. Unrouted requests share
// one label so scanners cannot blow up series cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.InFlightRequests.Inc()
		start := time.Now()
		defer func() {
			metrics.InFlightRequests.Dec()
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			metrics.APILatency.
				WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
				Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}
