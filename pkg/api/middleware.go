package api

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// -----------------------------------------------------------------------------
// CORS Middleware
// -----------------------------------------------------------------------------

// CORSMiddleware creates middleware that handles Cross-Origin Resource Sharing.
// It allows requests from the specified origins and handles preflight OPTIONS requests.
func CORSMiddleware(allowedOrigins []string) Middleware {
	originSet := make(map[string]bool)
	wildcard := false
	for _, origin := range allowedOrigins {
		originSet[origin] = true
		if origin == "*" {
			wildcard = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (wildcard || originSet[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// -----------------------------------------------------------------------------
// Logging Middleware
// -----------------------------------------------------------------------------

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Hijack implements http.Hijacker to support WebSocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher to support streaming responses.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware creates middleware that logs one line per request.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			logger.Info("[api] request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"latency", formatLatency(time.Since(start)),
				"bytes", wrapped.written,
				"request_id", w.Header().Get("X-Request-ID"),
			)
		})
	}
}

// formatLatency formats a duration for human-readable display.
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

// -----------------------------------------------------------------------------
// Recovery Middleware
// -----------------------------------------------------------------------------

// RecoveryMiddleware creates middleware that recovers from panics.
// It logs the panic and returns a 500 Internal Server Error.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("[api] panic", "error", err, "stack", string(debug.Stack()))
					WriteError(w, http.StatusInternalServerError,
						"internal_error",
						"An unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// -----------------------------------------------------------------------------
// Content-Type Middleware
// -----------------------------------------------------------------------------

// ContentTypeMiddleware rejects POST requests with a body that is not
// application/json.
func ContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.ContentLength > 0 {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				WriteError(w, http.StatusUnsupportedMediaType,
					"unsupported_media_type",
					"Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Request ID Middleware
// -----------------------------------------------------------------------------

// RequestIDMiddleware adds X-Request-ID to every response, keeping an ID set
// by an upstream proxy.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Middleware Chain Helper
// -----------------------------------------------------------------------------

// Chain applies multiple middleware to a handler in the order provided.
// The first middleware in the slice is the outermost (first to receive request).
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
