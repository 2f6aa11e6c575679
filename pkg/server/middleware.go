package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs one line per request with method, path, status and duration.
func LoggerMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.Errors()
			log.WithFields(fields).Error("HTTP request with errors")
			return
		}
		if path == "/health" {
			log.WithFields(fields).Debug("HTTP request")
			return
		}
		log.WithFields(fields).Info("HTTP request")
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response and a logged stack trace.
func RecoveryMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					"panic_info":  rec,
					"path":        c.Request.URL.Path,
					"method":      c.Request.Method,
					"stack_trace": string(debug.Stack()),
				}).Error("PANIC recovered in HTTP handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "internal server error",
				})
			}
		}()
		c.Next()
	}
}
