package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/metrics"
	"github.com/manyajain27/dating-app-sub000/internal/store"
)

// RateLimit defines limits for one endpoint.
// Path is matched segment by segment; "*" matches any single segment.
type RateLimit struct {
	Name     string // metrics label and key prefix
	Method   string
	Path     string
	Requests int
	Window   time.Duration
}

func (l RateLimit) matches(r *http.Request) bool {
	if r.Method != l.Method {
		return false
	}
	want := strings.Split(strings.Trim(l.Path, "/"), "/")
	got := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != "*" && want[i] != got[i] {
			return false
		}
	}
	return true
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist []string // IPs or CIDRs exempt from rate limiting
	SendLimit int      // messages per minute
}

// RateLimiter implements fixed window rate limiting backed by Redis.
type RateLimiter struct {
	counter      *store.RedisStore
	limits       []RateLimit // first match wins
	logger       zerolog.Logger
	whitelist    []*net.IPNet
	whitelistIPs map[string]bool
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(counter *store.RedisStore, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	sendLimit := cfg.SendLimit
	if sendLimit <= 0 {
		sendLimit = 30
	}

	rl := &RateLimiter{
		counter:      counter,
		logger:       logger,
		whitelistIPs: make(map[string]bool),
		limits: []RateLimit{
			{"send", http.MethodPost, "/conversations/*/messages", sendLimit, time.Minute},
			{"read", http.MethodPost, "/conversations/*/read", 120, time.Minute},
			{"open", http.MethodPost, "/conversations/*/open", 120, time.Minute},
			{"close", http.MethodPost, "/conversations/*/close", 120, time.Minute},
			{"create", http.MethodPost, "/conversations", 20, time.Minute},
			{"refresh", http.MethodGet, "/conversations", 120, time.Minute},
		},
	}

	// Parse whitelist entries
	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			// CIDR notation
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelist = append(rl.whitelist, ipNet)
		} else {
			// Single IP
			rl.whitelistIPs[entry] = true
		}
	}

	if len(cfg.Whitelist) > 0 {
		logger.Info().
			Int("ips", len(rl.whitelistIPs)).
			Int("cidrs", len(rl.whitelist)).
			Msg("rate limit whitelist configured")
	}

	return rl
}

// isWhitelisted checks if an IP is in the whitelist.
func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelist {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		limit := rl.findLimit(r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.Name + ":" + ip
		allowed, remaining, resetAt, err := rl.counter.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)
		if err != nil {
			// Fail open.
			rl.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retry := int(time.Until(resetAt).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			metrics.RateLimitHits.WithLabelValues(limit.Name).Inc()

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit finds the matching rate limit for a request.
func (rl *RateLimiter) findLimit(r *http.Request) *RateLimit {
	for i := range rl.limits {
		if rl.limits[i].matches(r) {
			return &rl.limits[i]
		}
	}
	return nil
}
