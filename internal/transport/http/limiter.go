package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long an unused client limiter is kept
const limiterIdle = 10 * time.Minute

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	limit     rate.Limit
	burst     int
	lastPrune time.Time
}

// newClientLimiter returns a limiter allowing perSecond writes with the given
// burst. A non-positive rate disables limiting.
func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		clients:   make(map[string]*clientEntry),
		limit:     limit,
		burst:     burst,
		lastPrune: time.Now(),
	}
}

func (l *clientLimiter) allow(client string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > limiterIdle {
		for key, entry := range l.clients {
			if now.Sub(entry.lastSeen) > limiterIdle {
				delete(l.clients, key)
			}
		}
		l.lastPrune = now
	}

	entry, ok := l.clients[client]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
