package middleware

import (
	"sync"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware is a coarse pre-guard limiter per client IP. It shields
// the governance pipeline itself from a single abusive client; per-resource
// policy stays with the guard.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewRateLimitMiddleware(rps float64, burst int) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (m *RateLimitMiddleware) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[ip]; ok {
		return l
	}
	l := rate.NewLimiter(m.rps, m.burst)
	m.limiters[ip] = l
	return l
}

func (m *RateLimitMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !m.limiterFor(ctx.RemoteIP().String()).Allow() {
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			ctx.SetBody(blockedBody)
			return
		}
		next(ctx)
	}
}
