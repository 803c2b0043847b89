package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// observability counts every request and writes an access log. The query
// string is never logged: it carries tokens and subscription URLs.
func observability(m *metricsSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.Method + " (unmatched)"
		} else {
			route = c.Request.Method + " " + route
		}
		m.incRequest(route, status)

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			return
		}
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   path,
			"status": status,
			"dur":    time.Since(start).Round(time.Millisecond),
			"bytes":  c.Writer.Size(),
		}).Info("http")
	}
}
