// Package admission guards the Scheduler's I/O-thread call-in points
// against a flooding transport. Any number of I/O goroutines may call
// in concurrently, and nothing stops one of them from being abusive.
package admission

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates calls by an arbitrary key (typically a caller/connection
// identity), lazily creating one token-bucket rate.Limiter per key.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewLimiter builds a Limiter allowing r events per second per key with
// burst b.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether the caller identified by key may proceed right
// now, creating a fresh bucket for keys seen for the first time.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiterFor(key).Allow()
}

// Reserve checks permission and, if the caller is over budget, cancels
// the reservation and reports how long it would have to wait instead of
// letting tokens go negative.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.limiterFor(key).Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = lim
	}
	return lim
}
