package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"auditor/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID reuses an incoming X-Request-ID or mints a new one, and echoes it
// on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func AccessLog(lggr logger.Logger) gin.HandlerFunc {
	lggr = lggr.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"requestID", GetRequestID(c),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			lggr.Errorw("request failed", fields...)
		case status >= http.StatusBadRequest:
			lggr.Warnw("request rejected", fields...)
		default:
			lggr.Infow("request served", fields...)
		}
	}
}

func Recovery(lggr logger.Logger) gin.HandlerFunc {
	lggr = lggr.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				lggr.Errorw("panic recovered", "panic", r, "requestID", GetRequestID(c), "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			}
		}()
		c.Next()
	}
}
