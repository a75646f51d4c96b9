package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caffeineduck/wagi/metrics"
)

// routeKey carries the matched module route through the gin context, so
// the metrics middleware labels by route pattern instead of raw path.
// Raw paths under a wildcard route would make an unbounded label set.
const routeKey = "wagi.route"

// RequestIDHeader names the header carrying the per-request identifier.
const RequestIDHeader = "X-Request-Id"

// RequestLogger logs one line per request. An inbound request id is
// reused; otherwise one is generated. Either way it is echoed in the
// response.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)

		c.Next()

		logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}

// Observe records one request metric per call, labeled by the matched
// route. Registered endpoints report their gin route; module requests
// report the module route pattern; everything else is "unrouted".
func Observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if r, ok := c.Get(routeKey); ok {
			if pattern, ok := r.(string); ok {
				route = pattern
			}
		}
		if route == "" {
			route = "unrouted"
		}
		m.RecordRequest(route, c.Writer.Status(), time.Since(start))
	}
}
