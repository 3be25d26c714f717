package middleware

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/logger"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	RequestIDHeader            = "X-Request-ID"
)

// RequestID reuses the caller's X-Request-ID or generates one, echoes it in
// the response and stores it in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, requestID)))
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logging writes one access entry per request. The route field carries the
// matched chi pattern, e.g. /tasks/{id}, so entries group by endpoint rather
// than by task or customer id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Log(statusLevel(status), "HTTP: request served",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", routePattern(r)),
			zap.String("path", r.URL.Path),
			zap.String("client_ip", clientIP(r)),
			zap.Int("status", status),
			zap.Int("bytes_written", ww.BytesWritten()),
			zap.Duration("ms", time.Since(start)),
		)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func statusLevel(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zap.ErrorLevel
	case status >= 400:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// rateLimiter counts requests per client IP in fixed one-minute windows.
type rateLimiter struct {
	rpm   int
	clock clock.Clock

	mtx     sync.Mutex
	clients map[string]*window
}

// take records one request from ip. It reports whether the request fits in the
// current window, how many requests remain and when the window resets.
func (l *rateLimiter) take(ip string) (bool, int, time.Time) {
	now := l.clock.Now()

	l.mtx.Lock()
	defer l.mtx.Unlock()

	win, ok := l.clients[ip]
	if !ok || !now.Before(win.resetAt) {
		win = &window{resetAt: now.Add(time.Minute)}
		l.clients[ip] = win
	}
	if win.count >= l.rpm {
		return false, 0, win.resetAt
	}
	win.count++
	return true, l.rpm - win.count, win.resetAt
}

// RateLimit allows rpm requests per client IP per minute. A non-positive rpm
// disables the limit.
func RateLimit(rpm int, clk clock.Clock) func(http.Handler) http.Handler {
	if rpm <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if clk == nil {
		clk = clock.Real{}
	}
	limiter := &rateLimiter{rpm: rpm, clock: clk, clients: make(map[string]*window)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetAt := limiter.take(clientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rpm))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				logger.Warn("HTTP: rate limit exceeded",
					zap.String("client_ip", clientIP(r)),
					zap.String("route", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":       "RATE_LIMIT_EXCEEDED",
					"message":     "too many requests, try again later",
					"retry_after": int(resetAt.Sub(clk.Now()).Seconds()),
					"request_id":  GetRequestID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
