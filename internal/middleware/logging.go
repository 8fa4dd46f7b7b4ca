// internal/middleware/logging.go
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/licensehub/license-server/internal/metrics"
	"github.com/licensehub/license-server/internal/services"
)

// RequestLogger logs every request through logrus and, when m is set,
// observes its latency. It also stores the client IP on the request context
// for audit events.
func RequestLogger(logger logrus.FieldLogger, m *metrics.LicenseMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(services.WithClientIP(c.Request.Context(), c.ClientIP()))

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if m != nil {
			m.RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(duration.Seconds())
		}

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   duration.Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		if username, ok := c.Get("username"); ok {
			entry = entry.WithField("admin", username)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request processed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}

// AdminAuditMiddleware records every mutating admin request as an
// ADMIN_REQUEST audit event. Request bodies are not recorded.
func AdminAuditMiddleware(sink services.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Milliseconds(),
		}
		if id := c.Param("id"); id != "" {
			fields["license_id"] = id
		}
		sink.Record(c.Request.Context(), services.AuditEvent{
			Event:  services.EventAdminRequest,
			Fields: fields,
			At:     start,
		})
	}
}
