package app

import (
	"fmt"
	"time"

	"lager_lending_tool/apperr"
	"lager_lending_tool/logger"
	"lager_lending_tool/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestContext tags the request with an id and makes the logger reachable from handlers.
func RequestContext(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Set(loggerKey, log)
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

func AccessLog(log *logger.Logger, m *metrics.Lending) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := log.WithFields(c.Request.Context(), map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)
		log.Info(ctx, "request.start")

		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.Request(c.Request.Method, route, status, elapsed)

		// handlers may have added user fields to the request context
		ctx = log.WithFields(c.Request.Context(), map[string]any{
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		})
		log.Info(ctx, "request.complete")
	}
}

// Recovery turns a panic into a 500 {error} response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		Fail(c, apperr.Internal(fmt.Errorf("panic: %v", rec), "panic"))
	})
}
