package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// requestsPerMinute is the per-IP budget shared by all routes.
	requestsPerMinute = 120

	sweepInterval = 5 * time.Minute
	staleAfter    = 10 * time.Minute
)

// rateLimiter counts requests per client IP in fixed one-minute windows.
// A background sweeper drops IPs that have gone quiet so the map stays
// bounded by the set of recently active clients.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*requestWindow
	done    chan struct{}
	once    sync.Once
}

type requestWindow struct {
	openedAt time.Time
	count    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		windows: make(map[string]*requestWindow),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// allow records one request for the IP and reports whether it stays within
// the budget. Exceeding requests still refresh the window, so a client
// hammering the API keeps itself locked out.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w := rl.windows[clientIP]
	if w == nil || now.Sub(w.openedAt) > time.Minute {
		rl.windows[clientIP] = &requestWindow{openedAt: now, count: 1}
		return true
	}

	w.count++
	if w.count > requestsPerMinute {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter)
			rl.mu.Lock()
			for ip, w := range rl.windows {
				if w.openedAt.Before(cutoff) {
					delete(rl.windows, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// stop ends the sweeper goroutine. Safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}
