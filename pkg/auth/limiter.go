package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPool hands out one token-bucket limiter per identity key.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiterPool builds a pool; non-positive values fall back to defaults.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = 25
	}
	if burst <= 0 {
		burst = 50
	}
	return &LimiterPool{m: map[string]*rate.Limiter{}, rps: rps, burst: burst}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether the identity may proceed now.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}
