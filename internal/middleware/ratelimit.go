package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// Limiter is a per client IP rate limiter shared by the HTTP submission
// routes and WebSocket commands.
type Limiter struct {
	rl *httprate.RateLimiter
}

// NewLimiter allows requestLimit requests per client IP in windowLength.
func NewLimiter(requestLimit int, windowLength time.Duration) *Limiter {
	retryAfter := strconv.Itoa(int(windowLength.Seconds()))
	return &Limiter{rl: httprate.NewRateLimiter(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after":` + retryAfter + `}`))
		}),
	)}
}

// Handler rejects requests over the limit with a JSON 429.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return l.rl.Handler(next)
}

// Allow counts one request from r's client and reports whether it is within
// the limit. It is meant for work that arrives outside a request, such as
// frames on an upgraded connection. A nil Limiter allows everything.
func (l *Limiter) Allow(r *http.Request) bool {
	if l == nil {
		return true
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return false
	}
	return !l.rl.OnLimit(headerSink{}, r, key)
}

// RateLimit creates per client IP rate limiting middleware.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return NewLimiter(requestLimit, windowLength).Handler
}

// headerSink absorbs the rate limit headers OnLimit sets when there is no
// response to carry them.
type headerSink struct{}

func (headerSink) Header() http.Header         { return http.Header{} }
func (headerSink) Write(b []byte) (int, error) { return len(b), nil }
func (headerSink) WriteHeader(int)             {}
