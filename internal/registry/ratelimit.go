package registry

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token-bucket limiter per (userID, toolName)
// pair, matching spec §4.A step 4 and the §5 rule that rate-limit breaches
// block the caller rather than dropping requests.
type limiterPool struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	ratePerSec   float64
	burst        int
}

func newLimiterPool(ratePerSec float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		limiters:   map[string]*rate.Limiter{},
		ratePerSec: ratePerSec,
		burst:      burst,
	}
}

func (p *limiterPool) get(userID, toolName string) *rate.Limiter {
	key := userID + "\x00" + toolName
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.ratePerSec), p.burst)
		p.limiters[key] = l
	}
	return l
}
