package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"research-portal/internal/shared/metrics"
	"research-portal/internal/shared/server/respond"
	"research-portal/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 processing_failed response.
// Panics on a document route also count as a failed document.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"tool_type":  c.GetString("toolType"),
			})
			if c.GetString("toolType") != "" {
				metrics.IncDocumentFailed("processing_failed")
			}
			respond.Error(c, http.StatusInternalServerError, "processing_failed", "Processing failed", nil)
		}()
		c.Next()
	}
}
