package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorTTL    = 3 * time.Minute
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter hands out one token bucket per caller identity. Callers idle
// for longer than visitorTTL are dropped on the next sweep, which runs from
// allow at most once per sweepInterval.
type callerLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

// newCallerLimiter returns a limiter allowing perSecond events per caller.
// A rate of zero disables limiting.
func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	limit := rate.Limit(perSecond)
	if perSecond == 0 {
		limit = rate.Inf
	}
	return &callerLimiter{
		limit:    limit,
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *callerLimiter) allow(caller string) bool {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	v, ok := l.visitors[caller]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[caller] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// sweep removes stale visitors. l.mu must be held.
func (l *callerLimiter) sweep(now time.Time) {
	for caller, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, caller)
		}
	}
	l.lastSweep = now
}

func (l *callerLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
