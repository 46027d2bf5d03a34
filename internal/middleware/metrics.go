package middleware

import (
	"strconv"

	"github.com/epeers/nexus/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics counts requests by route template, so /runs/:id is one series
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
