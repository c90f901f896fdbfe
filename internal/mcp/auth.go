package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultMCPMaxBodyBytes int64 = 1 << 20 // 1MiB
	defaultRateLimitPerMin       = 60
)

type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// httpGuard checks the bearer token, then the per-client rate, then caps the
// request body before handing off to the transport.
type httpGuard struct {
	next     http.Handler
	token    []byte
	limiter  *httpRateLimiter
	maxBytes int64
}

func wrapHTTPHandler(base http.Handler, cfg HTTPHandlerConfig) http.Handler {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMCPMaxBodyBytes
	}
	return &httpGuard{
		next:     base,
		token:    []byte(strings.TrimSpace(cfg.AuthToken)),
		limiter:  newHTTPRateLimiter(cfg.RateLimitPerMin),
		maxBytes: maxBytes,
	}
}

func (g *httpGuard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	provided, ok := bearerToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if len(g.token) == 0 || subtle.ConstantTimeCompare([]byte(provided), g.token) != 1 {
		writeJSONError(w, http.StatusForbidden, "invalid bearer token")
		return
	}
	if !g.limiter.Allow(rateLimitKey(provided, r.RemoteAddr)) {
		log.Warn().Str("component", "mcp").Str("remote", r.RemoteAddr).Msg("rate limit exceeded")
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, g.maxBytes)
	}
	g.next.ServeHTTP(w, r)
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	token, found := strings.CutPrefix(authz, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rateLimitKey(token, remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		host = strings.TrimSpace(remoteAddr)
	}
	if host == "" {
		host = "unknown"
	}
	return token + "|" + host
}

// httpRateLimiter keeps one token bucket per token and client host. The
// bucket refills perMin tokens a minute and holds at most perMin.
type httpRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func newHTTPRateLimiter(perMin int) *httpRateLimiter {
	if perMin <= 0 {
		perMin = defaultRateLimitPerMin
	}
	return &httpRateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMin)),
		burst:   perMin,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *httpRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
