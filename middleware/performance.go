package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

const SlowRequestThreshold = 200 * time.Millisecond

// PerformanceLogger logs slow requests. With verbose set every request is
// logged with its timing.
func PerformanceLogger(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		if verbose {
			log.Printf("[PERF] %s %s | Status: %d | Time: %v",
				c.Request.Method,
				c.Request.URL.Path,
				c.Writer.Status(),
				latency)
		}
		if latency > SlowRequestThreshold {
			log.Printf("[SLOW] %s %s took %v",
				c.Request.Method, c.Request.URL.Path, latency)
		}
	}
}
