// Package ratelimit throttles write requests per principal, or per client
// address for anonymous callers. Windows are fixed: the first request opens
// a window and at most limit requests pass until it expires.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more request for key fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// Memory is an in-process Limiter for single-instance deployments.
type Memory struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// NewMemory allows limit requests per key per duration. Close stops the
// background cleanup.
func NewMemory(limit int, duration time.Duration) *Memory {
	m := &Memory{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop(2 * duration)
	return m
}

// Allow never fails.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.After(w.expiresAt) {
		m.windows[key] = &window{count: 1, expiresAt: now.Add(m.duration)}
		return true, nil
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

func (m *Memory) Window() time.Duration { return m.duration }

// Close stops the cleanup goroutine. It is safe to call more than once.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Memory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, w := range m.windows {
				if now.After(w.expiresAt) {
					delete(m.windows, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Redis shares windows between instances. The increment and the expiry
// run as one script, so a counter never outlives its window.
type Redis struct {
	rdb      redis.Scripter
	prefix   string
	limit    int
	duration time.Duration
}

// windowScript increments KEYS[1] and gives it a TTL of ARGV[1] ms if it
// has none. Keys left without a TTL by older writers are repaired here.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// NewRedis stores counters under prefix:ratelimit:<key>.
func NewRedis(rdb redis.Scripter, prefix string, limit int, duration time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, duration: duration}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":ratelimit:" + key
	n, err := windowScript.Run(ctx, l.rdb, []string{k}, l.duration.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return n <= int64(l.limit), nil
}

func (l *Redis) Window() time.Duration { return l.duration }

// ClientIP returns the host part of RemoteAddr. chi's RealIP middleware
// has already applied X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func requestKey(r *http.Request) string {
	if p, ok := auth.CurrentPrincipal(r); ok {
		return "user:" + p.ID
	}
	return "ip:" + ClientIP(r)
}

// Middleware rejects requests over the limit with 429. Limiter failures are
// logged and the request is let through.
func Middleware(l Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				logger.Info("rate limited", zap.String("key", key), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", strconv.Itoa(int(l.Window().Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests. Please wait before trying again."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
