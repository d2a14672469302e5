package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Limiter paces a producer loop at a fixed rate and exposes the ticks as a
// channel so consumers can select on them together with a context.
type Limiter struct {
	cancel context.CancelFunc
	ch     chan struct{}
	l      ratelimit.Limiter
	limit  int
}

func NewLimiter(gCtx context.Context, limit int) *Limiter {
	ctx, cancel := context.WithCancel(gCtx)
	limiter := &Limiter{
		cancel: cancel,
		limit:  limit,
		ch:     make(chan struct{}),
		l:      ratelimit.New(limit),
	}
	go limiter.provider(ctx)
	return limiter
}

func (l *Limiter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

// Take blocks until the next tick.
func (l *Limiter) Take() {
	l.l.Take()
}

func (l *Limiter) Limit() int {
	return l.limit
}

// Chan delivers one tick per allowed operation.
func (l *Limiter) Chan() <-chan struct{} {
	return l.ch
}

func (l *Limiter) Stop() {
	l.cancel()
}
