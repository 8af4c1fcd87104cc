package rest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/viant/accessflow/metrics"
	svcidentity "github.com/viant/accessflow/service/identity"
)

var errPanic = errors.New("handler panic")

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the request id set by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID adds a unique request ID to the context and response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID)))
	})
}

// responseWriter captures status code for logging.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
			return tpl
		}
	}
	return "unmatched"
}

// AccessLog logs each request as one structured line and records request
// metrics labeled by route template.
func AccessLog(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)
			route := routeTemplate(r)
			metrics.RecordHTTPRequest(r.Method, route, rw.status, duration.Seconds())
			attrs := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", duration.Milliseconds(),
			}
			if caller, ok := svcidentity.FromContext(r.Context()); ok {
				attrs = append(attrs, "caller", caller.Email)
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Warn("http request", attrs...)
				return
			}
			logger.Info("http request", attrs...)
		})
	}
}

// Authenticate resolves the caller with resolver and stores the identity in
// the request context; unresolved callers get 401 or 403.
func Authenticate(resolver svcidentity.Resolver, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := resolver.Resolve(r.Context(), r)
			if err == nil && caller == nil {
				err = svcidentity.ErrNoCredential
			}
			if err != nil {
				respondError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(svcidentity.NewContext(r.Context(), caller)))
		})
	}
}

// RateLimitConfig configures the per-caller token bucket.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requestsPerMinute,omitempty" yaml:"requestsPerMinute,omitempty" mapstructure:"requests_per_minute"`
	Burst             int `json:"burst,omitempty" yaml:"burst,omitempty" mapstructure:"burst"`
	MaxCallers        int `json:"maxCallers,omitempty" yaml:"maxCallers,omitempty" mapstructure:"max_callers"`
}

// RateLimiter keeps one token bucket per caller; least recently seen
// callers are evicted beyond MaxCallers.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	perMin   int
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter returns nil when RequestsPerMinute is not positive.
func NewRateLimiter(config RateLimitConfig) (*RateLimiter, error) {
	if config.RequestsPerMinute <= 0 {
		return nil, nil
	}
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerMinute
	}
	if config.MaxCallers <= 0 {
		config.MaxCallers = 4096
	}
	limiters, err := lru.New[string, *rate.Limiter](config.MaxCallers)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:    config.Burst,
		perMin:   config.RequestsPerMinute,
		limiters: limiters,
	}, nil
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	if previous, ok, _ := l.limiters.PeekOrAdd(key, limiter); ok {
		return previous
	}
	return limiter
}

// Middleware limits requests per resolved caller, falling back to the
// client address.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if caller, ok := svcidentity.FromContext(r.Context()); ok {
			key = caller.Email
		}
		limiter := l.limiter(key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.perMin))
		if !limiter.Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(int(60/float64(l.perMin))+1))
			w.Header().Set("X-RateLimit-Remaining", "0")
			respondStructuredError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "too many requests, retry later", RequestIDFromContext(r.Context()), nil)
			return
		}
		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Recover turns a handler panic into a 500 response.
func Recover(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("handler panic", "request_id", RequestIDFromContext(r.Context()), "path", r.URL.Path, "panic", recovered)
					respondError(w, r, logger, errPanic)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
