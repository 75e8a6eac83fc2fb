package transport

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	portidempotency "github.com/alanyang/nlq-bench/internal/port/idempotency"
)

// IdempotencyHeader names the request header carrying a client-chosen key.
const IdempotencyHeader = "Idempotency-Key"

// noisyPaths are high-frequency read paths logged at Debug to keep Info clean.
var noisyPaths = map[string]bool{
	"/api/runs":         true,
	"/api/instructions": true,
	"/api/ws":           true,
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == http.MethodOptions {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Request.Method == http.MethodGet && noisyPaths[c.Request.URL.Path] {
			slog.Debug("request", attrs...)
			return
		}
		slog.Info("request", attrs...)
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+IdempotencyHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// recordingWriter tees the response body so it can be stored.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a POST that repeats
// an Idempotency-Key on the same route. A key first used on another route is
// rejected with 422. Requests without the header pass through. Server errors
// are not stored so the client can retry them.
func IdempotencyMiddleware(store portidempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.FullPath()

		stored, ok, err := store.Check(ctx, key)
		if err != nil {
			slog.Error("idempotency check failed", "key", key, "error", err)
			c.Next()
			return
		}
		if ok && stored.Operation != operation {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error": IdempotencyHeader + " already used for " + stored.Operation,
			})
			return
		}
		if ok {
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.StatusCode, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		resp := portidempotency.Response{StatusCode: status, Body: rec.body.Bytes()}
		if err := store.Save(ctx, key, operation, resp); err != nil {
			slog.Error("idempotency store failed", "key", key, "error", err)
		}
	}
}
