// Package ratelimit throttles API requests per client with token buckets.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	hits         int64

	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	now             func() time.Time
}

type clientInfo struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	CleanupInterval   time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup loop.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}

	rl := &Limiter{
		clients:         make(map[string]*clientInfo),
		stopCleanup:     make(chan struct{}),
		limit:           rate.Every(time.Minute / time.Duration(config.RequestsPerMinute)),
		burst:           config.Burst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		now:             time.Now,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether a request for key may proceed now.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	client, ok := rl.clients[key]
	if !ok {
		client = &clientInfo{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	rl.mu.Unlock()

	if client.limiter.AllowN(now, 1) {
		return true
	}
	atomic.AddInt64(&rl.hits, 1)
	return false
}

// retryAfter is the whole number of seconds until one token is available.
func (rl *Limiter) retryAfter() int {
	secs := int(time.Duration(float64(time.Second) / float64(rl.limit)).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries forgets clients idle longer than the idle timeout.
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTimeout)
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.hits),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects requests over the limit. key picks the bucket, usually the
// user id or the client IP.
func (rl *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(key(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
