package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"folio/internal/auth"
)

// WriteMiddleware records every non-read request under /api/ after the
// handler has run. Failures to record are logged at debug and never affect
// the response.
func WriteMiddleware(c *Client, logger *zap.Logger) gin.HandlerFunc {
	if c == nil {
		return func(gc *gin.Context) { gc.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(gc *gin.Context) {
		start := time.Now()
		gc.Next()

		path := gc.Request.URL.Path
		method := strings.ToUpper(gc.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := gc.Writer.Status()
		details := map[string]any{
			"method":   method,
			"path":     path,
			"route":    gc.FullPath(),
			"status":   status,
			"duration": time.Since(start).String(),
		}
		if uid, ok := auth.UserID(gc); ok {
			details["user_id"] = uid
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.CreateLog(ctx, Entry{Action: "folio_http_write", Level: LevelFromStatus(status), Details: details}); err != nil {
			logger.Debug("audit log failed", zap.Error(err))
		}
	}
}

func LevelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
