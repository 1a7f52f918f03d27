package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/ident/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Enabled reports whether the config limits anything.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

// Default profiles. The service overrides them from configuration.
var (
	// StrictLimit for credential checks and token grants.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit for authenticated account operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}

	// PublicLimit for discovery, JWKS and health endpoints.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the peer address of the request. Forwarding headers
// are ignored; use ProxyIPKeyExtractor behind a trusted proxy.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ProxyIPKeyExtractor prefers X-Forwarded-For and X-Real-IP. Only safe when
// every request passes through a proxy that overwrites those headers.
func ProxyIPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return IPKeyExtractor(r)
}

// PrincipalKeyExtractor returns the authenticated user id, if any.
func PrincipalKeyExtractor(r *http.Request) string {
	p, _ := PrincipalFrom(r.Context())
	return p.UserID
}

// CompositeKeyExtractor combines multiple key extractors with a separator,
// skipping empty parts.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// Limiter hands out one token bucket per key. Idle buckets are dropped
// periodically so ephemeral keys do not accumulate.
type Limiter struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewLimiter returns a Limiter for config. A disabled config allows everything.
func NewLimiter(config RateLimitConfig) *Limiter {
	l := &Limiter{config: config, lastCleanup: time.Now()}
	if config.Enabled() {
		l.rate = rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds())
	}
	if l.config.Burst <= 0 {
		l.config.Burst = max(config.RequestsPerWindow, 1)
	}
	return l
}

// Allow consumes a token for key. When denied it returns how long until the
// next token is available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.config.Enabled() {
		return true, 0
	}
	limiter := l.get(key)
	if limiter.Allow() {
		return true, 0
	}
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay
}

func (l *Limiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.config.Burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters whose buckets are full, i.e. idle ones.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.config.Burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// WriteTooManyRequests writes the 429 response with Retry-After.
func (l *Limiter) WriteTooManyRequests(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(max(int(retry.Seconds()), 1)))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Window", l.config.Window.String())
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":             "rate_limit_exceeded",
		"error_description": "Too many requests. Please try again later.",
	})
}

// RateLimitMiddleware limits requests grouped by keyExtractor.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	l := NewLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyExtractor(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if ok, retry := l.Allow(key); !ok {
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retry.String(),
				)
				l.WriteTooManyRequests(w, retry)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(config RateLimitConfig, ip KeyExtractor) Middleware {
	return RateLimitMiddleware(config, ip)
}

// RateLimitByUser limits by authenticated user, falling back to address.
func RateLimitByUser(config RateLimitConfig, ip KeyExtractor) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":", PrincipalKeyExtractor, ip))
}
