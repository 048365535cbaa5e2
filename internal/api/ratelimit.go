package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// Stream connect limits: a client gets a small burst, then one new
// stream every few seconds.
const (
	defaultStreamRate  = rate.Limit(0.5)
	defaultStreamBurst = 4
)

// IPRateLimiter hands out one token bucket per client IP. Used to
// throttle stream connection attempts; established streams are not
// affected.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

// NewIPRateLimiter builds a limiter pool with the given refill rate
// and burst. Non-positive values fall back to the defaults.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	if r <= 0 {
		r = defaultStreamRate
	}
	if b <= 0 {
		b = defaultStreamBurst
	}
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

// Allow reports whether the client may open another stream right now.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiterFor(ip).Allow()
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.ips[ip]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.ips[ip] = limiter
	}
	return limiter
}
