package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	// Zero or negative disables limiting.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// Message is sent as {"message": ...} with 429 responses.
	Message string
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// window counts requests of one key in the current and previous fixed
// windows; the effective count weights the previous one by its overlap with
// the sliding window.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

func (e *window) advance(now time.Time, size time.Duration) {
	elapsed := now.Sub(e.currStart)
	if elapsed < size {
		return
	}
	if elapsed < 2*size {
		e.prevCount = e.currCount
	} else {
		e.prevCount = 0
	}
	e.currCount = 0
	e.currStart = now.Truncate(size)
}

func (e *window) effective(now time.Time, size time.Duration) float64 {
	overlap := 1 - now.Sub(e.currStart).Seconds()/size.Seconds()
	return e.prevCount*math.Max(overlap, 0) + e.currCount
}

type rateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	if cfg.Message == "" {
		cfg.Message = "rate limit exceeded"
	}
	return &rateLimiter{
		cfg:     cfg,
		windows: make(map[string]*window),
	}
}

// allow records a request for key when it fits the limit and reports the
// remaining budget and the end of the current window.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, found := rl.windows[key]
	if !found {
		e = &window{currStart: now}
		rl.windows[key] = e
	}
	e.advance(now, rl.cfg.Window)

	count := e.effective(now, rl.cfg.Window)
	resetAt = e.currStart.Add(rl.cfg.Window)
	if count >= float64(rl.cfg.Max) {
		return 0, resetAt, false
	}

	e.currCount++
	return max(int(float64(rl.cfg.Max)-count-1), 0), resetAt, true
}

// evict drops keys idle for two full windows.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.windows {
		if now.Sub(e.currStart) >= 2*rl.cfg.Window {
			delete(rl.windows, key)
		}
	}
}

func (rl *rateLimiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * rl.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// RateLimit returns a middleware that enforces a per-key sliding window rate
// limit. Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejected requests get 429 with Retry-After.
//
// Idle keys are never evicted; use RateLimitWithCleanup in servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is like RateLimit but evicts idle keys every two
// windows until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	if cfg.Max > 0 && cfg.Window > 0 {
		go rl.evictLoop(ctx)
	}
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl.cfg.Max <= 0 || rl.cfg.Window <= 0 {
		return next
	}
	limit := strconv.Itoa(rl.cfg.Max)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, resetAt, ok := rl.allow(rl.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retryAfter := max(time.Until(resetAt), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeMessage(w, http.StatusTooManyRequests, rl.cfg.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
